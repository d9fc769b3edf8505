package cloudocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/extract"
)

// VisionAPI is the part of the Vision client the backend calls.
type VisionAPI interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateFilesResponse, error)
	Close() error
}

// Vision runs DOCUMENT_TEXT_DETECTION and returns positioned lines.
type Vision struct {
	client VisionAPI
	logger *slog.Logger
}

func NewVision(ctx context.Context, cfg common.GoogleConfig, logger *slog.Logger) (*Vision, error) {
	const op = "NewVision"
	client, err := vision.NewImageAnnotatorClient(ctx, clientOptions(cfg)...)
	if err != nil {
		return nil, wrap(op, err, "failed to create image annotator client")
	}
	return NewVisionWithClient(client, logger), nil
}

// NewVisionWithClient wraps an existing client.
func NewVisionWithClient(client VisionAPI, logger *slog.Logger) *Vision {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vision{client: client, logger: logger}
}

func (v *Vision) Name() string { return "google-vision" }

func (v *Vision) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func (v *Vision) Analyze(ctx context.Context, req extract.Request) (extract.Result, error) {
	const op = "Vision.Analyze"
	start := time.Now()
	if len(req.Content) > MaxInlineBytes {
		return extract.Result{}, wrap(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(req.Content)))
	}
	features := []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}}

	var annotations []*visionpb.AnnotateImageResponse
	switch req.MimeType {
	case constants.MimePDF, constants.MimeTIFF:
		resp, err := v.client.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
			Requests: []*visionpb.AnnotateFileRequest{{
				InputConfig: &visionpb.InputConfig{Content: req.Content, MimeType: req.MimeType},
				Features:    features,
			}},
		})
		if err != nil {
			return extract.Result{}, classify(op, err)
		}
		if len(resp.GetResponses()) == 0 {
			return extract.Result{}, wrap(op, ErrBackendFailed, "no response from Vision API")
		}
		file := resp.GetResponses()[0]
		if file.GetError() != nil {
			return extract.Result{}, wrap(op, ErrBackendFailed, file.GetError().GetMessage())
		}
		annotations = file.GetResponses()
	default:
		resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
			Requests: []*visionpb.AnnotateImageRequest{{
				Image:    &visionpb.Image{Content: req.Content},
				Features: features,
			}},
		})
		if err != nil {
			return extract.Result{}, classify(op, err)
		}
		annotations = resp.GetResponses()
	}

	res := extract.Result{Driver: v.Name(), Model: req.Model}
	var text strings.Builder
	var confSum float32
	var confN int
	for i, a := range annotations {
		if a.GetError() != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %s", i+1, a.GetError().GetMessage()))
			continue
		}
		full := a.GetFullTextAnnotation()
		if full == nil {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(full.GetText())
		for _, p := range full.GetPages() {
			res.Pages = append(res.Pages, visionPage(p))
			if p.GetConfidence() > 0 {
				confSum += p.GetConfidence()
				confN++
			}
		}
	}
	if confN > 0 {
		res.Confidence = confSum / float32(confN)
	}
	if req.Model == extract.ModelLayout {
		res.Layout = &extract.Layout{Content: text.String()}
	}
	res.Duration = time.Since(start)
	res.Raw = map[string]any{"pages": len(res.Pages), "text": text.String()}
	v.logger.Debug("vision analyze", "filename", req.Filename, "pages", len(res.Pages), "duration", res.Duration)
	return res, nil
}

// visionPage rebuilds lines from words, closing a line at every line-ending break.
// Normalized vertices are scaled by the page size.
func visionPage(p *visionpb.Page) extract.Page {
	page := extract.Page{Lines: []extract.RawLine{}}
	w, h := float64(p.GetWidth()), float64(p.GetHeight())

	var text strings.Builder
	var box bounds
	flush := func() {
		if t := strings.TrimSpace(text.String()); t != "" {
			page.Lines = append(page.Lines, extract.RawLine{Text: t, BoundingBox: box.quad()})
		}
		text.Reset()
		box = bounds{}
	}
	for _, block := range p.GetBlocks() {
		for _, para := range block.GetParagraphs() {
			for _, word := range para.GetWords() {
				box.addVision(word.GetBoundingBox(), w, h)
				for _, s := range word.GetSymbols() {
					text.WriteString(s.GetText())
					switch s.GetProperty().GetDetectedBreak().GetType() {
					case visionpb.TextAnnotation_DetectedBreak_SPACE, visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
						text.WriteString(" ")
					case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE, visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
						flush()
					}
				}
			}
			flush()
		}
	}
	return page
}
