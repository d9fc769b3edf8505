package spatial

import (
	"math"
	"regexp"
	"strings"
)

var (
	reNumerical = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	reBarcode   = regexp.MustCompile(`^(?:\d{8}|\d{13}|\d{14})$`)
)

// Distance is the Euclidean distance between line centers.
func Distance(a, b Line) float64 {
	return math.Hypot(a.CenterX-b.CenterX, a.MidY-b.MidY)
}

// HDist and VDist are the axis distances between line centers.
func HDist(a, b Line) float64 { return math.Abs(a.CenterX - b.CenterX) }
func VDist(a, b Line) float64 { return math.Abs(a.MidY - b.MidY) }

// BoxesOverlap reports whether the axis-aligned bounds of two boxes intersect.
func BoxesOverlap(a, b Box) bool {
	ax1, ay1, ax2, ay2 := a.Bounds()
	bx1, by1, bx2, by2 := b.Bounds()
	return ax1 <= bx2 && bx1 <= ax2 && ay1 <= by2 && by1 <= ay2
}

// IsNumerical accepts digits with at most one decimal separator.
func IsNumerical(s string) bool {
	return reNumerical.MatchString(strings.TrimSpace(s))
}

// IsBarcode accepts exactly 8, 13 or 14 contiguous digits.
func IsBarcode(s string) bool {
	return reBarcode.MatchString(strings.TrimSpace(s))
}

// Digits keeps only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasDecimal reports whether a numerical string carries a fractional part.
func HasDecimal(s string) bool {
	return strings.ContainsAny(s, ".,")
}
