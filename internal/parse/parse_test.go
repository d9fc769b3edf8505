package parse

import (
	"testing"

	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/spatial"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"3.00", "3"},
		{"£12,50", "12.5"},
		{"1,234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"-2.00", "-2"},
		{"USD 7.25", "7.25"},
	}
	for _, c := range cases {
		got, ok := ParseAmount(c.in)
		if !ok || got.String() != c.want {
			t.Errorf("ParseAmount(%q) = %s, %v; want %s", c.in, got, ok, c.want)
		}
	}
	if _, ok := ParseAmount("abc"); ok {
		t.Error("ParseAmount(abc) should fail")
	}
}

func TestLastAmountAndPriceLine(t *testing.T) {
	d, ok := LastAmount("Delivery fee 1.00 2.50")
	if !ok || d.String() != "2.5" {
		t.Errorf("LastAmount = %s %v", d, ok)
	}
	if _, ok := LastAmount("Milk 2L"); ok {
		t.Error("no amount expected")
	}
	for _, s := range []string{"3.00", "$4.99", "12,50", "1,200.00 A"} {
		if !IsPriceLine(s) {
			t.Errorf("IsPriceLine(%q) = false", s)
		}
	}
	for _, s := range []string{"2 x 1.50", "Milk 2L", "0012345", "TOTAL 3.00"} {
		if IsPriceLine(s) {
			t.Errorf("IsPriceLine(%q) = true", s)
		}
	}
	if got := StripAmounts("Service charge 2.00"); got != "Service charge" {
		t.Errorf("StripAmounts = %q", got)
	}
}

func TestFindDMY(t *testing.T) {
	got := FindDMY("Period 01/02/24 to 28/02/2024, bad 40/13/2024")
	if len(got) != 2 {
		t.Fatalf("FindDMY = %v", got)
	}
	if got[0].String() != "01/02/2024" || got[1].String() != "28/02/2024" {
		t.Errorf("FindDMY = %v %v", got[0], got[1])
	}
	if d, ok := FindDate("Date: 12-Mar-2024 10:31"); !ok || d != "12-Mar-2024" {
		t.Errorf("FindDate = %q %v", d, ok)
	}
}

func TestKeywordMatcher(t *testing.T) {
	m := KeywordMatcher([]string{"total", "vat"})
	if !m.MatchString("Grand TOTAL:") || !m.MatchString("vat") {
		t.Error("expected match")
	}
	if m.MatchString("Totally fresh") || m.MatchString("private") {
		t.Error("unexpected partial-word match")
	}
	if KeywordMatcher(nil).MatchString("anything") {
		t.Error("empty matcher matched")
	}
}

func TestFirstMatchClaimsInPrecedenceOrder(t *testing.T) {
	lines := spatial.NormalizeLines([]extract.RawLine{
		{Text: "alpha 1", BoundingBox: []float64{0, 0, 10, 0, 10, 10, 0, 10}},
		{Text: "beta 2", BoundingBox: []float64{0, 20, 10, 20, 10, 30, 0, 30}},
	})
	p := spatial.NewPage(lines)
	rules := []Rule[string]{
		{
			Name:  "beta",
			Match: func(l spatial.Line) bool { return l.Text == "beta 2" },
			Extract: func(_ *spatial.Page, l spatial.Line) (string, []spatial.Line, bool) {
				return l.Text, nil, true
			},
		},
		{
			Name: "any",
			Extract: func(_ *spatial.Page, l spatial.Line) (string, []spatial.Line, bool) {
				return l.Text, nil, true
			},
		},
	}
	v, ok := FirstMatch(p, rules)
	if !ok || v != "beta 2" || p.Owner(lines[1]) != "beta" {
		t.Fatalf("first = %q ok=%v owner=%q", v, ok, p.Owner(lines[1]))
	}
	v, ok = FirstMatch(p, rules)
	if !ok || v != "alpha 1" || p.Owner(lines[0]) != "any" {
		t.Fatalf("second = %q ok=%v", v, ok)
	}
	if _, ok = FirstMatch(p, rules); ok {
		t.Fatal("all lines claimed, expected no match")
	}
}
