package cloudocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"

	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/extract"
)

// DocumentAIAPI is the part of the Document AI client the backend calls.
type DocumentAIAPI interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAI runs a layout or form processor and returns lines, tables, form fields and entities.
type DocumentAI struct {
	client  DocumentAIAPI
	cfg     common.GoogleConfig
	timeout time.Duration
	logger  *slog.Logger
}

func NewDocumentAI(ctx context.Context, cfg common.GoogleConfig, timeout time.Duration, logger *slog.Logger) (*DocumentAI, error) {
	const op = "NewDocumentAI"
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, wrap(op, ErrMissingConfig, "GOOGLE_PROJECT_ID and GOOGLE_PROCESSOR_ID are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	opts := clientOptions(cfg)
	if ep, ok := documentAIEndpoint(cfg.Location); ok {
		opts = append(opts, ep)
	}
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, wrap(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}
	return NewDocumentAIWithClient(client, cfg, timeout, logger), nil
}

// NewDocumentAIWithClient wraps an existing client.
func NewDocumentAIWithClient(client DocumentAIAPI, cfg common.GoogleConfig, timeout time.Duration, logger *slog.Logger) *DocumentAI {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentAI{client: client, cfg: cfg, timeout: timeout, logger: logger}
}

func (d *DocumentAI) Name() string { return "google-documentai" }

func (d *DocumentAI) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

func (d *DocumentAI) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", d.cfg.ProjectID, d.cfg.Location, d.cfg.ProcessorID)
}

func (d *DocumentAI) Analyze(ctx context.Context, req extract.Request) (extract.Result, error) {
	const op = "DocumentAI.Analyze"
	start := time.Now()
	if len(req.Content) > MaxInlineBytes {
		return extract.Result{}, wrap(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(req.Content)))
	}
	ctx, cancel := common.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: req.Content, MimeType: req.MimeType},
		},
	})
	if err != nil {
		d.logger.Error("document ai call failed", "filename", req.Filename, "error", err)
		return extract.Result{}, classify(op, err)
	}
	doc := resp.GetDocument()
	if doc == nil {
		return extract.Result{}, wrap(op, ErrBackendFailed, "no document in response")
	}
	res := FromDocument(doc)
	res.Driver = d.Name()
	res.Model = req.Model
	res.Duration = time.Since(start)
	d.logger.Debug("document ai analyze", "filename", req.Filename, "pages", len(res.Pages),
		"tables", len(res.Layout.Tables), "duration", res.Duration)
	return res, nil
}

// FromDocument converts a processed document. Table cells spanning several rows or columns are
// written to their top-left slot only.
func FromDocument(doc *documentaipb.Document) extract.Result {
	text := doc.GetText()
	res := extract.Result{
		Layout: &extract.Layout{
			Content:       text,
			Tables:        []extract.Table{},
			KeyValuePairs: []extract.KeyValuePair{},
			Fields:        map[string]extract.Field{},
		},
	}
	var confSum float32
	var confN int
	for _, p := range doc.GetPages() {
		w, h := float64(p.GetDimension().GetWidth()), float64(p.GetDimension().GetHeight())
		page := extract.Page{Lines: make([]extract.RawLine, 0, len(p.GetLines()))}
		for _, l := range p.GetLines() {
			var b bounds
			b.addDocumentAI(l.GetLayout().GetBoundingPoly(), w, h)
			page.Lines = append(page.Lines, extract.RawLine{
				Text:        strings.TrimSpace(anchorText(text, l.GetLayout().GetTextAnchor())),
				BoundingBox: b.quad(),
			})
			if c := l.GetLayout().GetConfidence(); c > 0 {
				confSum += c
				confN++
			}
		}
		res.Pages = append(res.Pages, page)

		for _, t := range p.GetTables() {
			res.Layout.Tables = append(res.Layout.Tables, table(text, t))
		}
		for _, f := range p.GetFormFields() {
			res.Layout.KeyValuePairs = append(res.Layout.KeyValuePairs, extract.KeyValuePair{
				Key:   extract.Span{Content: strings.TrimSpace(anchorText(text, f.GetFieldName().GetTextAnchor()))},
				Value: extract.Span{Content: strings.TrimSpace(anchorText(text, f.GetFieldValue().GetTextAnchor()))},
			})
		}
	}
	for _, e := range doc.GetEntities() {
		value := strings.TrimSpace(e.GetMentionText())
		if nv := e.GetNormalizedValue(); nv != nil && nv.GetText() != "" {
			value = nv.GetText()
		}
		res.Layout.Fields[e.GetType()] = extract.Field{Value: value, Confidence: e.GetConfidence(), Kind: "entity"}
	}
	if confN > 0 {
		res.Confidence = confSum / float32(confN)
	}
	res.Raw = map[string]any{"pages": len(res.Pages), "tables": len(res.Layout.Tables), "entities": len(doc.GetEntities())}
	return res
}

func table(text string, t *documentaipb.Document_Page_Table) extract.Table {
	out := extract.Table{Cells: []extract.Cell{}}
	rows := append(append([]*documentaipb.Document_Page_Table_TableRow{}, t.GetHeaderRows()...), t.GetBodyRows()...)
	for r, row := range rows {
		col := 0
		for _, c := range row.GetCells() {
			out.Cells = append(out.Cells, extract.Cell{
				Content:     strings.TrimSpace(anchorText(text, c.GetLayout().GetTextAnchor())),
				RowIndex:    r,
				ColumnIndex: col,
			})
			span := int(c.GetColSpan())
			if span < 1 {
				span = 1
			}
			col += span
		}
		if col > out.ColumnCount {
			out.ColumnCount = col
		}
	}
	out.RowCount = len(rows)
	return out
}

// anchorText concatenates the text segments an anchor points at.
func anchorText(text string, a *documentaipb.Document_TextAnchor) string {
	var b strings.Builder
	for _, s := range a.GetTextSegments() {
		start, end := int(s.GetStartIndex()), int(s.GetEndIndex())
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return b.String()
}
