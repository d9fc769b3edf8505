package generic

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/docscan/internal/parse"
)

const datePattern = `(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})`

var (
	reNameLabel  = regexp.MustCompile(`(?im)^[ \t]*(?:customer|account|client)?[ \t]*name[ \t]*[:\-][ \t]*(.+)$`)
	// a capitalised label may follow the name with no space ("Jane DoeMobile:"); a label word
	// running on into more letters ("Telford") is part of the name
	rePhoneLabel = regexp.MustCompile(`\s*(?:\b(?i:mobile|phone|tel|cell)|Mobile|Phone|Tel|Cell)(?i:(?:\s*(?:no|number))?\.?\s*[:\-]?\s*(\+?\d[\d \-]{6,}\d)?)(?:[^A-Za-z].*)?$`)
	rePhoneValue = regexp.MustCompile(`(?i)(?:mobile|phone|tel|cell)(?:\s*(?:no|number))?\.?\s*[:\-]?\s*(\+?\d[\d \-]{6,}\d)`)
	rePhoneShape = regexp.MustCompile(`\+?\d{2,4}[ \-]?\d{3}[ \-]?\d{3,4}\b`)
	reKeyValue   = regexp.MustCompile(`^([A-Za-z][^:]{0,40}):\s*(\S.*)$`)

	reStatementDate   = regexp.MustCompile(`(?i)statement\s*date\s*[:\-]?\s*` + datePattern)
	reStatementPeriod = regexp.MustCompile(`(?i)period\s*[:\-]?\s*(?:from\s*)?` + datePattern + `\s*(?:-|–|to)\s*` + datePattern)
)

func compactPhone(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// customerName reads a labelled name, splitting off a phone label and number the OCR ran into it.
func customerName(text string) (name, phone string) {
	m := reNameLabel.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	name = m[1]
	if pm := rePhoneLabel.FindStringSubmatchIndex(name); pm != nil {
		if pm[2] >= 0 {
			phone = compactPhone(name[pm[2]:pm[3]])
		}
		name = name[:pm[0]]
	}
	return strings.TrimSpace(strings.Trim(name, " ,;")), phone
}

func mobileNumber(text string) string {
	if m := rePhoneValue.FindStringSubmatch(text); m != nil {
		return compactPhone(m[1])
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.Count(line, "/") >= 2 {
			continue
		}
		if m := rePhoneShape.FindString(line); m != "" {
			return compactPhone(m)
		}
	}
	return ""
}

func formatDMY(s string) string {
	if t := parse.FindDMY(s); len(t) > 0 {
		return t[0].String()
	}
	return ""
}

// statement reads the labelled statement date and period. Without labels the first unlabelled
// d/m/y triples are used: three or more give the date and then the period, two give the period
// (the first one doubling as the date), one gives only the date.
func statement(text string) (date, period string) {
	if m := reStatementDate.FindStringSubmatch(text); m != nil {
		date = formatDMY(m[1])
	}
	if m := reStatementPeriod.FindStringSubmatch(text); m != nil {
		if from, to := formatDMY(m[1]), formatDMY(m[2]); from != "" && to != "" {
			period = from + " - " + to
		}
	}
	if date != "" && period != "" {
		return date, period
	}
	triples := parse.FindDMY(text)
	var fbDate, fbPeriod string
	switch {
	case len(triples) >= 3:
		fbDate, fbPeriod = triples[0].String(), triples[1].String()+" - "+triples[2].String()
	case len(triples) == 2:
		fbDate, fbPeriod = triples[0].String(), triples[0].String()+" - "+triples[1].String()
	case len(triples) == 1:
		fbDate = triples[0].String()
	}
	if date == "" {
		date = fbDate
	}
	if period == "" {
		period = fbPeriod
	}
	return date, period
}
