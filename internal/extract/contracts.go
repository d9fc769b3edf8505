package extract

import (
	"context"
	"time"
)

// Backend turns document bytes into positioned OCR output.
type Backend interface {
	Name() string
	Analyze(ctx context.Context, req Request) (Result, error)
}

// Model selects what the backend should return.
type Model string

const (
	ModelRead   Model = "read"   // flat lines with boxes
	ModelLayout Model = "layout" // lines plus tables and key/value pairs
)

// Request is one OCR call.
type Request struct {
	Content  []byte
	MimeType string
	Model    Model
	Filename string
}

// Result is the backend-independent OCR output the parsers consume.
type Result struct {
	Pages      []Page        `json:"pages"`
	Layout     *Layout       `json:"layout,omitempty"`
	Driver     string        `json:"driver"`
	Model      Model         `json:"model"`
	Confidence float32       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	Warnings   []string      `json:"warnings,omitempty"`
	// Raw is the backend's own response, cached separately for debugging. It may be arbitrarily shaped.
	Raw any `json:"-"`
}

// Page holds the lines of one page in reading order.
type Page struct {
	Lines []RawLine `json:"lines"`
}

// RawLine is one OCR line with its quadrilateral [x1,y1,x2,y2,x3,y3,x4,y4].
type RawLine struct {
	Text        string    `json:"text"`
	BoundingBox []float64 `json:"boundingBox"`
}

// Layout is the structured output of a layout model.
type Layout struct {
	Content       string           `json:"content"`
	Tables        []Table          `json:"tables"`
	KeyValuePairs []KeyValuePair   `json:"keyValuePairs"`
	Fields        map[string]Field `json:"fields"`
}

type Table struct {
	RowCount    int    `json:"rowCount"`
	ColumnCount int    `json:"columnCount"`
	Cells       []Cell `json:"cells"`
}

type Cell struct {
	Content     string `json:"content"`
	RowIndex    int    `json:"rowIndex"`
	ColumnIndex int    `json:"columnIndex"`
}

type KeyValuePair struct {
	Key   Span `json:"key"`
	Value Span `json:"value"`
}

type Span struct {
	Content string `json:"content"`
}

// Field is a typed value detected by a prebuilt model.
type Field struct {
	Value      any     `json:"value"`
	Confidence float32 `json:"confidence"`
	Kind       string  `json:"kind"`
}

// Lines returns every line of every page in input order.
func (r Result) Lines() []RawLine {
	var out []RawLine
	for _, p := range r.Pages {
		out = append(out, p.Lines...)
	}
	return out
}

// Empty reports whether the result carries no text at all.
func (r Result) Empty() bool {
	if r.Layout != nil && (r.Layout.Content != "" || len(r.Layout.Tables) > 0 || len(r.Layout.KeyValuePairs) > 0) {
		return false
	}
	for _, p := range r.Pages {
		if len(p.Lines) > 0 {
			return false
		}
	}
	return true
}
