// Package parse holds what the rule-based document parsers share: tuning
// configuration, the rule loop and money/date helpers.
package parse

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/docscan/internal/spatial"
)

// Config tunes every parser. It is passed by value and never mutated after construction.
type Config struct {
	Meter   MeterConfig
	Receipt ReceiptConfig
	Table   TableConfig
}

type MeterConfig struct {
	Scorer spatial.Scorer
	// MarkerJoin is the max distance between a split "M" and "3" to form one unit marker.
	MarkerJoin        float64
	MinSerialDigits   int
	MinFallbackDigits int
	NoiseKeywords     []string
}

type ReceiptConfig struct {
	RowTolerance    float64
	MaxAddressLines int
	FeeLookahead    int
	DescriptionGap  float64 // barcode -> description
	QtyGap          float64 // barcode -> qty x price
	TotalGap        float64 // qty x price -> explicit total
	LabelValueGap   float64 // label -> value below it
	NoiseKeywords   []string
}

type TableConfig struct {
	RowTolerance float64
}

func DefaultConfig() Config {
	return Config{
		Meter: MeterConfig{
			Scorer:            spatial.Scorer{LengthWeight: 10, AboveBonus: 25, MaxH: 250, MaxV: 350},
			MarkerJoin:        100,
			MinSerialDigits:   5,
			MinFallbackDigits: 6,
			NoiseKeywords: []string{
				"ISO", "CLASS", "BAR", "MID", "METER", "WATER", "MADE", "IN", "TYPE", "MODEL",
				"SERIAL", "NO", "PN", "DN", "EEC", "CE", "VERTICAL", "HORIZONTAL", "MAX", "MIN",
			},
		},
		Receipt: ReceiptConfig{
			RowTolerance:    15,
			MaxAddressLines: 6,
			FeeLookahead:    3,
			DescriptionGap:  120,
			QtyGap:          200,
			TotalGap:        80,
			LabelValueGap:   60,
			NoiseKeywords: []string{
				"receipt", "invoice", "tax", "vat", "gst", "total", "subtotal", "sub-total", "date", "time",
				"cashier", "till", "tel", "phone", "fax", "www", "http", "email", "order", "transaction",
				"payment", "change", "cash", "card", "visa", "mastercard", "thank", "welcome", "qty",
				"description", "amount", "price", "balance", "served", "ref", "customer", "copy",
			},
		},
		Table: TableConfig{
			RowTolerance: 50,
		},
	}
}

// KeywordMatcher compiles a case-insensitive whole-word matcher for keywords.
// An empty list matches nothing.
func KeywordMatcher(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return regexp.MustCompile(`a^`)
	}
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`)
}
