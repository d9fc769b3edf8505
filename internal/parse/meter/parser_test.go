package meter

import (
	"reflect"
	"testing"

	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/spatial"
)

func box(x, y, w, h float64) []float64 {
	return []float64{x, y, x + w, y, x + w, y + h, x, y + h}
}

// stack lays lines out top to bottom, 40 units apart.
func stack(texts ...string) extract.Result {
	var lines []extract.RawLine
	for i, t := range texts {
		lines = append(lines, extract.RawLine{Text: t, BoundingBox: box(100, float64(i*40), float64(10*len(t)), 20)})
	}
	return extract.Result{Pages: []extract.Page{{Lines: lines}}}
}

func TestParseSensusMeter(t *testing.T) {
	p := New(parse.DefaultConfig())
	bill := p.Parse(stack("SENSUS", "ISO 4064", "Q3: 5 m³/h", "PN16 bar", "Class B", "M3", "0012345"))

	if bill.Manufacturer != "SENSUS" {
		t.Errorf("manufacturer = %q", bill.Manufacturer)
	}
	if bill.Standard != "ISO 4064" {
		t.Errorf("standard = %q", bill.Standard)
	}
	if bill.ModelSpecs.Q3 != "5 m³/h" {
		t.Errorf("q3 = %q", bill.ModelSpecs.Q3)
	}
	if bill.ModelSpecs.PN != "16 bar" || bill.ModelSpecs.Class != "B" {
		t.Errorf("pn=%q class=%q", bill.ModelSpecs.PN, bill.ModelSpecs.Class)
	}
	if bill.MainReading != "0012345" {
		t.Errorf("mainReading = %q", bill.MainReading)
	}
	if bill.SerialNumber != "" {
		t.Errorf("serial = %q, the only number belongs to the reading", bill.SerialNumber)
	}
}

func TestSpecsCompositeLine(t *testing.T) {
	p := New(parse.DefaultConfig())
	bill := p.Parse(stack("Q3/Q1 = 160 T30 x0.001 A-V", "Q3 2,5 m3/h PN 10"))
	want := specSummary{
		ratio: "160", q3: "2.5 m³/h", pn: "10 bar", temp: "T30",
		multipliers: []string{"x0.001"}, orientation: "A-vertical",
	}
	got := specSummary{
		ratio: bill.ModelSpecs.Q3Q1Ratio, q3: bill.ModelSpecs.Q3, pn: bill.ModelSpecs.PN,
		temp: bill.ModelSpecs.MaxTemp, multipliers: bill.ModelSpecs.Multipliers, orientation: bill.ModelSpecs.Orientation,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("specs = %+v, want %+v", got, want)
	}
}

type specSummary struct {
	ratio, q3, pn, temp string
	multipliers         []string
	orientation         string
}

func TestSerialAndReadingWithoutMarker(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		serial  string
		reading string
	}{
		{"top number is serial", []string{"ITRON", "987654", "0004521"}, "987654", "0004521"},
		{"decimal is serial", []string{"ITRON", "00123", "20.123456"}, "20.123456", "00123"},
		{"single number is serial", []string{"ITRON", "987654"}, "987654", ""},
		{"suffixed reading wins fallback", []string{"0 0 2 0 0 3", "1234 m3"}, "", "1234"},
		{"spaced digits", []string{"ITRON", "0 0 2 0 0 3"}, "", "002003"},
	}
	p := New(parse.DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill := p.Parse(stack(tt.lines...))
			if bill.SerialNumber != tt.serial {
				t.Errorf("serial = %q, want %q", bill.SerialNumber, tt.serial)
			}
			if bill.MainReading != tt.reading {
				t.Errorf("reading = %q, want %q", bill.MainReading, tt.reading)
			}
		})
	}
}

func TestSplitUnitMarkerIsJoined(t *testing.T) {
	res := extract.Result{Pages: []extract.Page{{Lines: []extract.RawLine{
		{Text: "1234567", BoundingBox: box(600, 0, 70, 20)},
		{Text: "M", BoundingBox: box(100, 200, 10, 20)},
		{Text: "3", BoundingBox: box(112, 195, 8, 10)},
		{Text: "0456789", BoundingBox: box(100, 240, 70, 20)},
	}}}}
	bill := New(parse.DefaultConfig()).Parse(res)
	if bill.MainReading != "0456789" {
		t.Errorf("reading = %q", bill.MainReading)
	}
	if bill.SerialNumber != "1234567" {
		t.Errorf("serial = %q", bill.SerialNumber)
	}
}

func TestEmptyInput(t *testing.T) {
	p := New(parse.DefaultConfig())
	for _, res := range []extract.Result{{}, {Pages: []extract.Page{{}}}} {
		bill := p.Parse(res)
		if bill.Manufacturer != "" || bill.MainReading != "" || bill.ModelSpecs.Multipliers == nil {
			t.Errorf("unexpected bill %+v", bill)
		}
	}
}

func TestParseIsDeterministic(t *testing.T) {
	p := New(parse.DefaultConfig())
	for _, res := range []extract.Result{
		stack("SENSUS", "ISO 4064", "Q3: 5 m³/h", "PN16 bar", "Class B", "M3", "0012345"),
		stack("ITRON", "00123", "20.123456"),
		stack("0 0 2 0 0 3", "1234 m3"),
	} {
		first, second := p.Parse(res), p.Parse(res)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("two parses differ:\n%+v\n%+v", first, second)
		}
	}
}

func TestEveryLineHasOneOwner(t *testing.T) {
	tests := []struct {
		name string
		res  extract.Result
		want map[string]string
	}{
		{
			name: "marker points at reading",
			res:  stack("SENSUS", "ISO 4064", "Q3: 5 m³/h", "PN16 bar", "Class B", "M3", "0012345"),
			want: map[string]string{
				"SENSUS":     "meter.manufacturer",
				"ISO 4064":   "meter.standard",
				"Q3: 5 m³/h": "meter.spec",
				"PN16 bar":   "meter.spec",
				"Class B":    "meter.spec",
				"M3":         "meter.marker",
				"0012345":    "meter.reading",
			},
		},
		{
			name: "serial above reading",
			res:  stack("ITRON", "987654", "0004521"),
			want: map[string]string{
				"ITRON":   "meter.manufacturer",
				"987654":  "meter.serial",
				"0004521": "meter.reading",
			},
		},
	}
	p := New(parse.DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := spatial.NewPage(spatial.NormalizeLines(tt.res.Lines()))
			p.ParsePage(page)
			if page.Refused() != 0 {
				t.Errorf("%d claims hit a line that already had an owner", page.Refused())
			}
			if got := page.Owners(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("owners = %v, want %v", got, tt.want)
			}
		})
	}
}
