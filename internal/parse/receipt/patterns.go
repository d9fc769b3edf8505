package receipt

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/spatial"
)

var (
	reItemLike     = regexp.MustCompile(`^\d{1,2}\s+[A-Za-z]`)
	reConjunction  = regexp.MustCompile(`(?i)^(?:and|&|or)\s+`)
	reInvoiceLabel = regexp.MustCompile(`(?i)^(?:tax\s+)?(?:invoice|inv|receipt|bill)\s*(?:(?:no|number|num|#)\.?\s*[:#]?|:)\s*$`)
	reInvoiceNo    = regexp.MustCompile(`(?i)\b(?:invoice|inv|receipt|bill)\s*(?:no|number|num|#)\.?\s*[:#]?\s*([A-Z0-9][A-Z0-9\-/]*)`)
	reOrderNo      = regexp.MustCompile(`(?i)\b(?:order|transaction|trans|txn|ref(?:erence)?)\s*(?:no|number|id|#)?\.?\s*[:#]?\s*([A-Z0-9][A-Z0-9\-]{3,})`)
	reDateLabel    = regexp.MustCompile(`(?i)\b(?:date|dated|issued)\b`)
	reInvoiceValue = regexp.MustCompile(`(?i)^[A-Z0-9][A-Z0-9\-/]*$`)

	rePaymentLabel = regexp.MustCompile(`(?i)^\s*(?:payment(?:\s*(?:method|type|mode))?|paid\s*(?:by|with|via)|tender(?:ed)?(?:\s*type)?|method\s*of\s*payment)\s*[:\-]?\s*(.*)$`)
	rePaymentWord  = regexp.MustCompile(`(?i)^(cash|visa|mastercard|amex|american\s+express|debit\s+card|credit\s+card|card|m-?pesa|paypal|apple\s+pay|google\s+pay)\b`)
	rePromo        = regexp.MustCompile(`(?i)\b(promo(?:tion)?|discount|coupon|voucher|offer|savings?)\b`)
	reFee          = regexp.MustCompile(`(?i)\b(delivery|service|charge|fee)\b`)
	reFree         = regexp.MustCompile(`(?i)\bfree\b`)

	reQtyPrice     = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*(?:x|X|×|\*|@)\s*[$£€]?\s*(\d+(?:[.,]\d{1,2})?)(?:\s+[$£€]?\s*(\d+[.,]\d{2}))?\s*$`)
	reQtyDescPrice = regexp.MustCompile(`^(\d{1,3})\s+([A-Za-z].*?)(?:\s+[$£€]?\s*(\d+[.,]\d{2}))?\s*$`)
	reTrailPrice   = regexp.MustCompile(`^([A-Za-z].*?)\s+[$£€]?\s*(\d+[.,]\d{2})\s*[A-Z]?$`)
	reLoneQty      = regexp.MustCompile(`^\d{1,2}$`)

	reSubtotal = regexp.MustCompile(`(?i)\bsub[\s\-]?total\b`)
	reTax      = regexp.MustCompile(`(?i)\b(?:tax|vat|gst|hst|pst)\b`)
	reTaxNoise = regexp.MustCompile(`(?i)tax\s*invoice|(?:vat|tax|gst)\s*(?:no|reg|number|id|#)`)
	reTotal    = regexp.MustCompile(`(?i)\b(?:grand\s+)?total\b`)
	reTotalNot = regexp.MustCompile(`(?i)total\s+(?:items?|qty|quantity|savings?|discount)`)
)

func isQtyPrice(l spatial.Line) bool { return reQtyPrice.MatchString(strings.TrimSpace(l.Text)) }
func isPrice(l spatial.Line) bool    { return parse.IsPriceLine(l.Text) }

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func hasLower(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

// isSummaryLine reports keyword lines that never describe a purchased item.
func isSummaryLine(s string) bool {
	return reSubtotal.MatchString(s) || reTotal.MatchString(s) || (reTax.MatchString(s) && !reTaxNoise.MatchString(s)) ||
		rePaymentLabel.MatchString(s) || rePromo.MatchString(s)
}
