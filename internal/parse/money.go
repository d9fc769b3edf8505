package parse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyCodes = `(?:USD|EUR|GBP|KES|NGN|ZAR|CAD|AUD|INR)`
	reAmount      = regexp.MustCompile(`-?\s*(?:[$£€]|` + currencyCodes + `\s)?\s*(?:\d{1,3}(?:,\d{3})+|\d+)[.,]\d{2}\b`)
	rePriceLine   = regexp.MustCompile(`^[-–]?\s*(?:[$£€]|` + currencyCodes + `)?\s*(?:\d{1,3}(?:,\d{3})+|\d+)[.,]\d{2}\s*[A-Z]?$`)
)

// IsPriceLine reports whether the whole text is a single price, e.g. "3.00", "£12,50", "1,234.00 A".
func IsPriceLine(s string) bool {
	return rePriceLine.MatchString(strings.TrimSpace(s))
}

// LastAmount returns the right-most money amount in s.
func LastAmount(s string) (decimal.Decimal, bool) {
	all := reAmount.FindAllString(s, -1)
	if len(all) == 0 {
		return decimal.Zero, false
	}
	return ParseAmount(all[len(all)-1])
}

// StripAmounts removes every money amount from s.
func StripAmounts(s string) string {
	return strings.TrimSpace(reAmount.ReplaceAllString(s, ""))
}

// ParseAmount reads a money string with either decimal convention.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-") || strings.HasPrefix(s, "–")
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	num := b.String()
	if num == "" {
		return decimal.Zero, false
	}
	lastDot := strings.LastIndex(num, ".")
	lastComma := strings.LastIndex(num, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			num = strings.ReplaceAll(num, ".", "")
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	case lastComma >= 0:
		if len(num)-lastComma-1 == 2 {
			num = strings.ReplaceAll(num[:lastComma], ",", "") + "." + num[lastComma+1:]
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// Money rounds to cents and converts for output.
func Money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
