package spatial

import "math"

// Page bundles the sorted lines of one document with its claim set and index.
// It is owned by a single parser invocation and is not safe for concurrent use.
type Page struct {
	Lines  []Line
	claims *Claims
	index  *Index
}

func NewPage(lines []Line) *Page {
	return &Page{Lines: lines, claims: NewClaims(), index: NewIndex(lines)}
}

func (p *Page) Claim(l Line, rule string) bool { return p.claims.Claim(l.Index, rule) }
func (p *Page) Claimed(l Line) bool            { return p.claims.Claimed(l.Index) }
func (p *Page) Owner(l Line) string            { return p.claims.Owner(l.Index) }

// Refused counts claims that lost to an earlier owner. Parsers check free lines before
// claiming, so a non-zero count means two rules read the same line.
func (p *Page) Refused() int { return p.claims.Refused() }

// Owners maps the text of every claimed line to its rule.
func (p *Page) Owners() map[string]string {
	out := make(map[string]string)
	for i, rule := range p.claims.Owners() {
		out[p.Lines[i].Text] = rule
	}
	return out
}

// Unclaimed returns the free lines in sorted order.
func (p *Page) Unclaimed() []Line {
	out := make([]Line, 0, len(p.Lines))
	for _, l := range p.Lines {
		if !p.claims.Claimed(l.Index) {
			out = append(out, l)
		}
	}
	return out
}

// Window returns free lines within the h/v window around anchor, anchor excluded.
func (p *Page) Window(anchor Line, h, v float64) []Line {
	var out []Line
	for _, i := range p.index.Window(anchor.CenterX, anchor.MidY, h, v) {
		l := p.Lines[i]
		if l.Index == anchor.Index || p.claims.Claimed(i) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// RightOf returns the closest free line on the same row to the right of anchor.
func (p *Page) RightOf(anchor Line, rowTol float64, pred func(Line) bool) (Line, bool) {
	var best Line
	bestDX := math.Inf(1)
	_, _, anchorRight, _ := anchor.Box.Bounds()
	for _, l := range p.Lines {
		if l.Index == anchor.Index || p.claims.Claimed(l.Index) {
			continue
		}
		if VDist(anchor, l) > rowTol || l.CenterX <= anchor.CenterX {
			continue
		}
		if pred != nil && !pred(l) {
			continue
		}
		minX, _, _, _ := l.Box.Bounds()
		dx := math.Abs(minX - anchorRight)
		if dx < bestDX {
			best, bestDX = l, dx
		}
	}
	return best, !math.IsInf(bestDX, 1)
}

// Below returns the nearest free line under anchor within maxDY, preferring small vertical
// then small horizontal offset.
func (p *Page) Below(anchor Line, maxDY float64, pred func(Line) bool) (Line, bool) {
	var best Line
	found := false
	for _, l := range p.Lines {
		if l.Index == anchor.Index || p.claims.Claimed(l.Index) {
			continue
		}
		dy := l.MidY - anchor.MidY
		if dy <= 0 || dy > maxDY {
			continue
		}
		if pred != nil && !pred(l) {
			continue
		}
		if !found || dy < best.MidY-anchor.MidY ||
			(dy == best.MidY-anchor.MidY && HDist(anchor, l) < HDist(anchor, best)) {
			best, found = l, true
		}
	}
	return best, found
}

// Following returns up to n free lines after anchor in sorted order.
func (p *Page) Following(anchor Line, n int) []Line {
	var out []Line
	for i := anchor.Index + 1; i < len(p.Lines) && len(out) < n; i++ {
		if !p.claims.Claimed(i) {
			out = append(out, p.Lines[i])
		}
	}
	return out
}
