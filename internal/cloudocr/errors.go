package cloudocr

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrDocumentTooLarge is returned for inline content above the synchronous API limit (20MB).
	ErrDocumentTooLarge = errors.New("document exceeds the 20MB inline limit")

	ErrMissingConfig      = errors.New("cloud OCR backend is not configured")
	ErrPermissionDenied   = errors.New("insufficient permissions for cloud OCR")
	ErrQuotaExceeded      = errors.New("cloud OCR quota exceeded")
	ErrProcessorNotFound  = errors.New("document processor not found")
	ErrUnsupportedContent = errors.New("document format not supported or corrupted")
	ErrBackendFailed      = errors.New("cloud OCR processing failed")
	ErrEmptyDocument      = errors.New("document contains no readable text")
)

// BackendError tags a failure with the backend operation that produced it.
type BackendError struct {
	Op      string
	Err     error
	Details string
}

func (e *BackendError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("cloudocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("cloudocr: %s failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// wrap returns err as a BackendError unless it already is one.
func wrap(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err, Details: details}
}

// classify maps an RPC failure onto the package sentinels.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return wrap(op, context.DeadlineExceeded, "processing timeout")
	case errors.Is(err, context.Canceled):
		return wrap(op, context.Canceled, "processing was canceled")
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return wrap(op, ErrPermissionDenied, status.Convert(err).Message())
	case codes.ResourceExhausted:
		return wrap(op, ErrQuotaExceeded, status.Convert(err).Message())
	case codes.NotFound:
		return wrap(op, ErrProcessorNotFound, status.Convert(err).Message())
	case codes.InvalidArgument:
		return wrap(op, ErrUnsupportedContent, status.Convert(err).Message())
	case codes.DeadlineExceeded:
		return wrap(op, context.DeadlineExceeded, "processing timeout")
	default:
		return wrap(op, ErrBackendFailed, err.Error())
	}
}
