// Package meter reads utility meter faces: manufacturer, standard, model specs,
// serial number and the main register reading.
package meter

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/spatial"
)

var (
	reCapsToken = regexp.MustCompile(`^[A-ZА-ЯЁ]{4,}$`)
	reMarker    = regexp.MustCompile(`^[Mm]\s*[³3]$`)
	reSuffixed  = regexp.MustCompile(`^(\d{4,})\s*[Mm]\s*[³3]?$`)
	reSpaced    = regexp.MustCompile(`^\d(?:\s+\d){4,}$`)
)

type Parser struct {
	cfg   parse.MeterConfig
	noise map[string]struct{}
}

func New(cfg parse.Config) *Parser {
	noise := make(map[string]struct{}, len(cfg.Meter.NoiseKeywords))
	for _, k := range cfg.Meter.NoiseKeywords {
		noise[strings.ToUpper(k)] = struct{}{}
	}
	return &Parser{cfg: cfg.Meter, noise: noise}
}

type state struct {
	bill    document.UtilityBill
	anchors []float64

	marker    spatial.Line
	hasMarker bool
	serial    spatial.Line
	hasSerial bool
	hint      spatial.Line
	hasHint   bool
}

// Parse reads a meter from OCR output. Split "M" / "3" unit marks are joined before
// normalization drops single-character lines.
func (p *Parser) Parse(res extract.Result) document.UtilityBill {
	raw := joinSplitMarkers(res.Lines(), p.cfg.MarkerJoin)
	return p.ParseLines(spatial.NormalizeLines(raw))
}

// ParseLines reads a meter from already normalized lines.
func (p *Parser) ParseLines(lines []spatial.Line) document.UtilityBill {
	if len(lines) == 0 {
		return document.NewUtilityBill()
	}
	return p.ParsePage(spatial.NewPage(lines))
}

// ParsePage reads a meter from page. Every line a field was read from stays claimed by its rule.
func (p *Parser) ParsePage(page *spatial.Page) document.UtilityBill {
	st := &state{bill: document.NewUtilityBill()}
	if len(page.Lines) == 0 {
		return st.bill
	}
	parse.RunSteps(page, st, []parse.Step[state]{
		{Name: "standard", Run: p.standard},
		{Name: "specs", Run: p.specs},
		{Name: "manufacturer", Run: p.manufacturer},
		{Name: "marker", Run: p.unitMarker},
		{Name: "serial", Run: p.serialNumber},
		{Name: "reading", Run: p.mainReading},
	})
	return st.bill
}

func (p *Parser) standard(page *spatial.Page, st *state) {
	for _, l := range page.Unclaimed() {
		m := reStandard.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		st.bill.Standard = "ISO " + m[1]
		applySpecs(strings.Replace(l.Text, m[0], " ", 1), &st.bill.ModelSpecs)
		page.Claim(l, "meter.standard")
		st.anchors = append(st.anchors, l.MidY)
		return
	}
}

func (p *Parser) specs(page *spatial.Page, st *state) {
	for _, l := range page.Unclaimed() {
		if applySpecs(l.Text, &st.bill.ModelSpecs) {
			page.Claim(l, "meter.spec")
			st.anchors = append(st.anchors, l.MidY)
		}
	}
}

func (p *Parser) manufacturer(page *spatial.Page, st *state) {
	var (
		best     string
		bestLine spatial.Line
		bestDist = math.Inf(1)
		found    bool
	)
	for _, l := range page.Unclaimed() {
		name, ok := p.manufacturerName(l.Text)
		if !ok {
			continue
		}
		if len(st.anchors) == 0 {
			best, bestLine, found = name, l, true
			break
		}
		d := math.Inf(1)
		for _, a := range st.anchors {
			d = math.Min(d, math.Abs(l.MidY-a))
		}
		if d < bestDist {
			best, bestLine, bestDist, found = name, l, d, true
		}
	}
	if found {
		st.bill.Manufacturer = best
		page.Claim(bestLine, "meter.manufacturer")
	}
}

func (p *Parser) manufacturerName(text string) (string, bool) {
	for _, tok := range strings.Fields(text) {
		tok = strings.TrimFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) })
		if !reCapsToken.MatchString(tok) {
			continue
		}
		if _, noisy := p.noise[tok]; noisy {
			continue
		}
		return tok, true
	}
	if strings.Contains(text, "©") {
		name := strings.TrimSpace(strings.ReplaceAll(text, "©", ""))
		name = strings.TrimSpace(strings.TrimFunc(name, unicode.IsDigit))
		if name != "" {
			return name, true
		}
	}
	return "", false
}

func (p *Parser) unitMarker(page *spatial.Page, st *state) {
	for _, l := range page.Unclaimed() {
		if reMarker.MatchString(l.Text) {
			page.Claim(l, "meter.marker")
			st.marker, st.hasMarker = l, true
			return
		}
	}
}

func (p *Parser) serialPool(page *spatial.Page) []spatial.Line {
	var pool []spatial.Line
	for _, l := range page.Unclaimed() {
		if spatial.IsNumerical(l.Text) && len(spatial.Digits(l.Text)) >= p.cfg.MinSerialDigits {
			pool = append(pool, l)
		}
	}
	return pool
}

// serialNumber separates the serial from the reading. A number the unit marker points at is
// reserved for the reading before the pool is split.
func (p *Parser) serialNumber(page *spatial.Page, st *state) {
	pool := p.serialPool(page)
	if st.hasMarker && len(pool) > 0 {
		inPool := func(l spatial.Line) bool {
			for _, c := range pool {
				if c.Index == l.Index {
					return !spatial.IsBarcode(l.Text)
				}
			}
			return false
		}
		if best, ok := p.cfg.Scorer.Best(page, st.marker, inPool); ok {
			st.hint, st.hasHint = best.Line, true
			pool = without(pool, best.Line)
		}
	}

	switch {
	case len(pool) == 0:
		return
	case len(pool) == 1:
		st.serial, st.hasSerial = pool[0], true
	default:
		var decimals []spatial.Line
		for _, l := range pool {
			if spatial.HasDecimal(l.Text) {
				decimals = append(decimals, l)
			}
		}
		if len(decimals) > 0 {
			st.serial, st.hasSerial = decimals[0], true
			if !st.hasHint {
				if w, ok := longestWhole(pool); ok {
					st.hint, st.hasHint = w, true
				}
			}
		} else {
			sorted := append([]spatial.Line(nil), pool...)
			sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MidY < sorted[j].MidY })
			st.serial, st.hasSerial = sorted[0], true
			if !st.hasHint {
				st.hint, st.hasHint = sorted[1], true
			}
		}
	}
	st.bill.SerialNumber = strings.TrimSpace(st.serial.Text)
	page.Claim(st.serial, "meter.serial")
}

func (p *Parser) mainReading(page *spatial.Page, st *state) {
	if st.hasHint && page.Claim(st.hint, "meter.reading") {
		st.bill.MainReading = strings.TrimSpace(st.hint.Text)
		return
	}
	if st.hasMarker {
		pred := func(l spatial.Line) bool {
			return spatial.IsNumerical(l.Text) && !spatial.IsBarcode(l.Text)
		}
		if best, ok := p.cfg.Scorer.Best(page, st.marker, pred); ok {
			page.Claim(best.Line, "meter.reading")
			st.bill.MainReading = strings.TrimSpace(best.Line.Text)
			return
		}
	}
	p.fallbackReading(page, st)
}

// fallbackReading ranks suffixed numbers over spaced digit runs over long plain numbers.
func (p *Parser) fallbackReading(page *spatial.Page, st *state) {
	type cand struct {
		line     spatial.Line
		value    string
		priority int
	}
	var best *cand
	for _, l := range page.Unclaimed() {
		text := strings.TrimSpace(l.Text)
		var c *cand
		switch {
		case reSuffixed.MatchString(text):
			c = &cand{line: l, value: reSuffixed.FindStringSubmatch(text)[1], priority: 3}
		case reSpaced.MatchString(text):
			c = &cand{line: l, value: spatial.Digits(text), priority: 2}
		case spatial.IsNumerical(text) && len(spatial.Digits(text)) >= p.cfg.MinFallbackDigits &&
			text != st.bill.SerialNumber:
			c = &cand{line: l, value: text, priority: 1}
		}
		if c == nil {
			continue
		}
		if best == nil || c.priority > best.priority ||
			(c.priority == best.priority && len(spatial.Digits(c.value)) > len(spatial.Digits(best.value))) {
			best = c
		}
	}
	if best != nil {
		page.Claim(best.line, "meter.reading")
		st.bill.MainReading = best.value
	}
}

func longestWhole(pool []spatial.Line) (spatial.Line, bool) {
	var best spatial.Line
	found := false
	for _, l := range pool {
		if spatial.HasDecimal(l.Text) {
			continue
		}
		if !found || len(spatial.Digits(l.Text)) > len(spatial.Digits(best.Text)) {
			best, found = l, true
		}
	}
	return best, found
}

func without(lines []spatial.Line, drop spatial.Line) []spatial.Line {
	out := lines[:0:0]
	for _, l := range lines {
		if l.Index != drop.Index {
			out = append(out, l)
		}
	}
	return out
}

// joinSplitMarkers merges a lone "M" with the nearest lone "3"/"³" into one "M3" line.
func joinSplitMarkers(raw []extract.RawLine, maxDist float64) []extract.RawLine {
	used := map[int]bool{}
	var joined []extract.RawLine
	for i, m := range raw {
		if t := strings.TrimSpace(m.Text); t != "M" && t != "m" {
			continue
		}
		mx, my := center(m.BoundingBox)
		bestJ, bestD := -1, maxDist
		for j, n := range raw {
			if used[j] || j == i {
				continue
			}
			if t := strings.TrimSpace(n.Text); t != "3" && t != "³" {
				continue
			}
			nx, ny := center(n.BoundingBox)
			if d := math.Hypot(mx-nx, my-ny); d <= bestD {
				bestJ, bestD = j, d
			}
		}
		if bestJ < 0 {
			continue
		}
		used[i], used[bestJ] = true, true
		joined = append(joined, extract.RawLine{Text: "M3", BoundingBox: union(m.BoundingBox, raw[bestJ].BoundingBox)})
	}
	if len(joined) == 0 {
		return raw
	}
	out := make([]extract.RawLine, 0, len(raw))
	for i, r := range raw {
		if !used[i] {
			out = append(out, r)
		}
	}
	return append(out, joined...)
}

func center(box []float64) (float64, float64) {
	var sx, sy float64
	for i := 0; i < 4; i++ {
		if 2*i < len(box) {
			sx += box[2*i]
		}
		if 2*i+1 < len(box) {
			sy += box[2*i+1]
		}
	}
	return sx / 4, sy / 4
}

func union(a, b []float64) []float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, box := range [][]float64{a, b} {
		for i := 0; i+1 < len(box); i += 2 {
			minX, maxX = math.Min(minX, box[i]), math.Max(maxX, box[i])
			minY, maxY = math.Min(minY, box[i+1]), math.Max(maxY, box[i+1])
		}
	}
	if math.IsInf(minX, 1) {
		return nil
	}
	return []float64{minX, minY, maxX, minY, maxX, maxY, minX, maxY}
}
