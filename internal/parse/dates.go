package parse

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	reAnyDate = regexp.MustCompile(`(?i)\b(?:\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}|\d{1,2}[\s\-](?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*[\s\-,]+\d{2,4}|\d{4}-\d{2}-\d{2})\b`)
	reDMY     = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})\b`)
)

// FindDate returns the first date-looking token in s as written.
func FindDate(s string) (string, bool) {
	m := reAnyDate.FindString(s)
	return m, m != ""
}

// DMY is a day/month/year triple.
type DMY struct {
	Day, Month, Year int
}

func (d DMY) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, d.Month, d.Year)
}

// FindDMY returns every plausible d/m/y triple in s in order of appearance.
// Two-digit years are read as 20xx.
func FindDMY(s string) []DMY {
	var out []DMY
	for _, m := range reDMY.FindAllStringSubmatch(s, -1) {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			y += 2000
		} else if len(m[3]) == 3 {
			continue
		}
		if d < 1 || d > 31 || mo < 1 || mo > 12 {
			continue
		}
		out = append(out, DMY{Day: d, Month: mo, Year: y})
	}
	return out
}
