package meter

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/docscan/internal/document"
)

var (
	reStandard   = regexp.MustCompile(`(?i)\bISO\s*(\d{3,5})\b`)
	reRatio      = regexp.MustCompile(`(?i)\bQ\s*3\s*/\s*Q\s*1\s*[:=]?\s*(\d{2,4})\b|\bR\s*[:=]?\s*(\d{2,4})\b`)
	reQ3         = regexp.MustCompile(`(?i)\b(?:Q\s*3|Q\s*n|O\s*3|O\s*n)\s*[:=]?\s*(\d+(?:[.,]\d+)?)\s*(m\s*[³3]\s*/\s*h)?`)
	rePN         = regexp.MustCompile(`(?i)\bPN\s*(\d{1,3})\s*(?:bar)?\b`)
	reTempRange  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*[-–]\s*(\d{2,3})\s*°\s*C`)
	reTempDegree = regexp.MustCompile(`(\d{2,3})\s*°\s*C`)
	reTempT      = regexp.MustCompile(`\bT\s*(\d{2,3})\b`)
	reClass      = regexp.MustCompile(`(?i)\bclass\s*[:=]?\s*([A-D])\b`)
	reMultiplier = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])[xX×]\s*(0[.,]\d+)`)
	reOrientA    = regexp.MustCompile(`(?:^|[^\p{L}])A\s*[-–]?\s*(?:V|[Vv]ert(?:ical)?)\b`)
	reOrientB    = regexp.MustCompile(`(?:^|[^\p{L}])B\s*[-–]?\s*(?:H|[Hh]or(?:iz(?:ontal)?)?)\b`)
	reVertical   = regexp.MustCompile(`(?i)\bvertical\b`)
	reHorizontal = regexp.MustCompile(`(?i)\bhorizontal\b`)
)

const (
	orientationVertical   = "A-vertical"
	orientationHorizontal = "B-horizontal"
)

// applySpecs fills every model spec found in text and reports whether any matched.
// Fields already set keep their first value.
func applySpecs(text string, specs *document.ModelSpecs) bool {
	matched := false

	rest := text
	if m := reRatio.FindStringSubmatch(text); m != nil {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		if specs.Q3Q1Ratio == "" {
			specs.Q3Q1Ratio = v
		}
		rest = strings.Replace(text, m[0], " ", 1)
		matched = true
	}
	if m := reQ3.FindStringSubmatch(rest); m != nil {
		if specs.Q3 == "" {
			v := strings.Replace(m[1], ",", ".", 1)
			if m[2] != "" {
				v += " m³/h"
			}
			specs.Q3 = v
		}
		matched = true
	}
	if m := rePN.FindStringSubmatch(text); m != nil {
		if specs.PN == "" {
			specs.PN = m[1] + " bar"
		}
		matched = true
	}
	switch {
	case reTempRange.MatchString(text):
		m := reTempRange.FindStringSubmatch(text)
		if specs.MaxTemp == "" {
			specs.MaxTemp = strings.Replace(m[1], ",", ".", 1) + "-" + m[2] + "°C"
		}
		matched = true
	case reTempDegree.MatchString(text):
		if specs.MaxTemp == "" {
			specs.MaxTemp = reTempDegree.FindStringSubmatch(text)[1] + "°C"
		}
		matched = true
	case reTempT.MatchString(text):
		if specs.MaxTemp == "" {
			specs.MaxTemp = "T" + reTempT.FindStringSubmatch(text)[1]
		}
		matched = true
	}
	if m := reClass.FindStringSubmatch(text); m != nil {
		if specs.Class == "" {
			specs.Class = strings.ToUpper(m[1])
		}
		matched = true
	}
	for _, m := range reMultiplier.FindAllStringSubmatch(text, -1) {
		v := "x" + strings.Replace(m[1], ",", ".", 1)
		if !contains(specs.Multipliers, v) {
			specs.Multipliers = append(specs.Multipliers, v)
		}
		matched = true
	}
	if o := orientation(text); o != "" {
		if specs.Orientation == "" {
			specs.Orientation = o
		}
		matched = true
	}
	return matched
}

func orientation(text string) string {
	switch {
	case reOrientA.MatchString(text), reVertical.MatchString(text):
		return orientationVertical
	case reOrientB.MatchString(text), reHorizontal.MatchString(text):
		return orientationHorizontal
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
