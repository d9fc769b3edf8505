// Package spatial turns raw OCR lines into positioned, claimable lines and
// answers proximity questions about them.
package spatial

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/docscan/internal/extract"
)

type Point struct {
	X, Y float64
}

// Box is the OCR quadrilateral, corners in input order.
type Box [4]Point

// Bounds returns the axis-aligned rectangle enclosing the box.
func (b Box) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = b[0].X, b[0].Y
	maxX, maxY = minX, minY
	for _, p := range b[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}

// Line is one normalized OCR line. Index is its position in the sorted slice.
type Line struct {
	Index   int
	Text    string
	Upper   string
	Box     Box
	CenterX float64
	MidY    float64
}

// Normalize flattens all pages into lines sorted top to bottom.
// Lines shorter than two characters are dropped. Nil input yields an empty slice.
func Normalize(pages []extract.Page) []Line {
	var raw []extract.RawLine
	for _, p := range pages {
		raw = append(raw, p.Lines...)
	}
	return NormalizeLines(raw)
}

// NormalizeLines is Normalize for an already flattened line list.
func NormalizeLines(raw []extract.RawLine) []Line {
	lines := make([]Line, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(r.Text)
		if utf8.RuneCountInString(text) < 2 {
			continue
		}
		box := boxFrom(r.BoundingBox)
		var sx, sy float64
		for _, p := range box {
			sx += p.X
			sy += p.Y
		}
		lines = append(lines, Line{
			Text:    text,
			Upper:   strings.ToUpper(text),
			Box:     box,
			CenterX: sx / 4,
			MidY:    sy / 4,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].MidY < lines[j].MidY })
	for i := range lines {
		lines[i].Index = i
	}
	return lines
}

// boxFrom reads [x1,y1,...,x4,y4]; missing coordinates are zero.
func boxFrom(coords []float64) Box {
	var b Box
	for i := 0; i < 4; i++ {
		if 2*i < len(coords) {
			b[i].X = coords[2*i]
		}
		if 2*i+1 < len(coords) {
			b[i].Y = coords[2*i+1]
		}
	}
	return b
}
