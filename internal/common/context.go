package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID  contextKey = "request_id"
	ContextKeySellerID   contextKey = "seller_id"
	ContextKeyAnalysisID contextKey = "analysis_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithSellerID adds a seller ID to the context
func WithSellerID(ctx context.Context, sellerID string) context.Context {
	return context.WithValue(ctx, ContextKeySellerID, sellerID)
}

// SellerIDFromContext extracts the seller ID from context
func SellerIDFromContext(ctx context.Context) string {
	if sellerID, ok := ctx.Value(ContextKeySellerID).(string); ok {
		return sellerID
	}
	return ""
}

// WithAnalysisID adds an analysis ID to the context
func WithAnalysisID(ctx context.Context, analysisID string) context.Context {
	return context.WithValue(ctx, ContextKeyAnalysisID, analysisID)
}

// AnalysisIDFromContext extracts the analysis ID from context
func AnalysisIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyAnalysisID).(string); ok {
		return id
	}
	return ""
}

// WithTimeout creates a context with the specified timeout. Non-positive timeouts leave ctx untouched.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// LogAttrs returns the ids carried by ctx as slog key/value pairs.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := SellerIDFromContext(ctx); id != "" {
		attrs = append(attrs, "seller_id", id)
	}
	if id := AnalysisIDFromContext(ctx); id != "" {
		attrs = append(attrs, "analysis_id", id)
	}
	return attrs
}
