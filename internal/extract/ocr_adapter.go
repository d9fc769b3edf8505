package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/docscan/internal/ocr"
)

// OCRAdapter exposes the local tesseract extractor as a Backend.
type OCRAdapter struct {
	e      *ocr.Extractor
	logger *slog.Logger
}

func NewOCRAdapter(e *ocr.Extractor, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{e: e, logger: logger}
}

func (a *OCRAdapter) Name() string { return "tesseract" }

func (a *OCRAdapter) Analyze(ctx context.Context, req Request) (Result, error) {
	r, err := a.e.Extract(ctx, req.Content, req.MimeType)
	if err != nil {
		a.logger.Error("local ocr failed", "filename", req.Filename, "error", err)
		return Result{Driver: a.Name(), Model: req.Model, Warnings: r.Warnings}, err
	}
	res := Result{
		Pages:      make([]Page, 0, len(r.Pages)),
		Driver:     a.Name(),
		Model:      req.Model,
		Confidence: r.Confidence,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
		Raw: map[string]any{
			"method":     r.Method,
			"sourceType": r.SourceType,
			"language":   r.Language,
			"pages":      len(r.Pages),
		},
	}
	for _, p := range r.Pages {
		page := Page{Lines: make([]RawLine, 0, len(p.Lines))}
		for _, l := range p.Lines {
			box := l.Box
			page.Lines = append(page.Lines, RawLine{Text: l.Text, BoundingBox: box[:]})
		}
		res.Pages = append(res.Pages, page)
	}
	// tesseract has no table model; the generic parser rebuilds tables from lines
	if req.Model == ModelLayout {
		res.Layout = &Layout{Content: r.Text}
	}
	return res, nil
}
