// Package receipt reads receipts and invoices: header, identifiers, payment, fees,
// line items and totals, then reconciles the money.
package receipt

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/spatial"
)

type Parser struct {
	cfg   parse.ReceiptConfig
	noise *regexp.Regexp
}

func New(cfg parse.Config) *Parser {
	return &Parser{cfg: cfg.Receipt, noise: parse.KeywordMatcher(cfg.Receipt.NoiseKeywords)}
}

type item struct {
	sku, description string
	qty, unit, total decimal.Decimal
}

type fee struct {
	name   string
	amount decimal.Decimal
}

type state struct {
	r     document.Receipt
	items []item
	fees  []fee
	tax   decimal.Decimal
}

func (p *Parser) Parse(res extract.Result) document.Receipt {
	return p.ParseLines(spatial.Normalize(res.Pages))
}

func (p *Parser) ParseLines(lines []spatial.Line) document.Receipt {
	if len(lines) == 0 {
		return document.NewReceipt()
	}
	return p.ParsePage(spatial.NewPage(lines))
}

// ParsePage reads a receipt from page, leaving the claim of every line it used on the page.
func (p *Parser) ParsePage(page *spatial.Page) document.Receipt {
	st := &state{r: document.NewReceipt()}
	if len(page.Lines) == 0 {
		return st.r
	}
	parse.RunSteps(page, st, []parse.Step[state]{
		{Name: "header", Run: p.header},
		{Name: "invoice", Run: p.invoice},
		{Name: "payment", Run: p.payment},
		{Name: "promotions", Run: p.promotions},
		{Name: "fees", Run: p.feeLines},
		{Name: "items", Run: p.barcodeItems},
		{Name: "items.fallback", Run: p.descriptionItems},
		{Name: "items.reclassify", Run: reclassifyFees},
		{Name: "items.last_resort", Run: p.lastResortItems},
		{Name: "totals", Run: p.totals},
		{Name: "reconcile", Run: reconcile},
	})
	return st.r
}

func (p *Parser) isNoise(text string) bool {
	if p.noise.MatchString(text) || letterCount(text) < 3 {
		return true
	}
	if spatial.IsNumerical(text) || spatial.IsBarcode(text) || parse.IsPriceLine(text) || reQtyPrice.MatchString(text) {
		return true
	}
	_, isDate := parse.FindDate(text)
	return isDate
}

// startsItems reports whether l opens the item block. The business name never sits below it.
func startsItems(l spatial.Line) bool {
	t := strings.TrimSpace(l.Text)
	if spatial.IsBarcode(t) || isQtyPrice(l) || isPrice(l) {
		return true
	}
	if !reItemLike.MatchString(t) {
		return false
	}
	_, isDate := parse.FindDate(t)
	return !isDate
}

func (p *Parser) header(page *spatial.Page, st *state) {
	var name spatial.Line
	found := false
	for _, l := range page.Unclaimed() {
		if startsItems(l) {
			break
		}
		if utf8.RuneCountInString(l.Text) > 5 && !p.isNoise(l.Text) {
			name, found = l, true
			break
		}
	}
	if !found {
		return
	}
	st.r.BusinessName = strings.TrimSpace(reConjunction.ReplaceAllString(name.Text, ""))
	page.Claim(name, "receipt.business_name")

	var address []string
	for _, l := range page.Lines[name.Index+1:] {
		if len(address) >= p.cfg.MaxAddressLines {
			break
		}
		if page.Claimed(l) {
			continue
		}
		text := l.Text
		if reItemLike.MatchString(text) || p.noise.MatchString(text) || spatial.IsBarcode(text) ||
			parse.IsPriceLine(text) || reQtyPrice.MatchString(text) {
			break
		}
		if _, hasAmount := parse.LastAmount(text); hasAmount {
			break
		}
		if spatial.IsNumerical(text) || letterCount(text) < 2 {
			continue
		}
		address = append(address, text)
		page.Claim(l, "receipt.address")
	}
	st.r.BusinessAddress = strings.Join(address, ", ")
}

func isInvoiceValue(l spatial.Line) bool {
	t := strings.TrimSpace(l.Text)
	return reInvoiceValue.MatchString(t) && strings.ContainsAny(t, "0123456789")
}

func hasDate(l spatial.Line) bool {
	_, ok := parse.FindDate(l.Text)
	return ok
}

func (p *Parser) invoice(page *spatial.Page, st *state) {
	// inline identifiers often share their line with the date
	takeDate := func(text string) {
		if st.r.InvoiceDate == "" {
			if d, ok := parse.FindDate(text); ok {
				st.r.InvoiceDate = d
			}
		}
	}
	numberRules := []parse.Rule[string]{
		{
			Name:  "invoice.label",
			Match: func(l spatial.Line) bool { return reInvoiceLabel.MatchString(l.Text) },
			Extract: func(pg *spatial.Page, l spatial.Line) (string, []spatial.Line, bool) {
				if v, ok := pg.RightOf(l, p.cfg.RowTolerance, isInvoiceValue); ok {
					return strings.TrimSpace(v.Text), []spatial.Line{v}, true
				}
				if v, ok := pg.Below(l, p.cfg.LabelValueGap, isInvoiceValue); ok {
					return strings.TrimSpace(v.Text), []spatial.Line{v}, true
				}
				return "", nil, false
			},
		},
		{
			Name:  "invoice.inline",
			Match: func(l spatial.Line) bool { return reInvoiceNo.MatchString(l.Text) },
			Extract: func(_ *spatial.Page, l spatial.Line) (string, []spatial.Line, bool) {
				v := reInvoiceNo.FindStringSubmatch(l.Text)[1]
				if !strings.ContainsAny(v, "0123456789") {
					return "", nil, false
				}
				takeDate(l.Text)
				return v, nil, true
			},
		},
		{
			Name:  "invoice.order",
			Match: func(l spatial.Line) bool { return reOrderNo.MatchString(l.Text) },
			Extract: func(_ *spatial.Page, l spatial.Line) (string, []spatial.Line, bool) {
				v := reOrderNo.FindStringSubmatch(l.Text)[1]
				if !strings.ContainsAny(v, "0123456789") {
					return "", nil, false
				}
				takeDate(l.Text)
				return v, nil, true
			},
		},
	}
	if v, ok := parse.FirstMatch(page, numberRules); ok {
		st.r.InvoiceNo = v
	}
	if st.r.InvoiceDate != "" {
		return
	}

	dateRules := []parse.Rule[string]{
		{
			Name:  "invoice.date_inline",
			Match: func(l spatial.Line) bool { return reDateLabel.MatchString(l.Text) && hasDate(l) },
			Extract: func(_ *spatial.Page, l spatial.Line) (string, []spatial.Line, bool) {
				d, ok := parse.FindDate(l.Text)
				return d, nil, ok
			},
		},
		{
			Name:  "invoice.date_label",
			Match: func(l spatial.Line) bool { return reDateLabel.MatchString(l.Text) },
			Extract: func(pg *spatial.Page, l spatial.Line) (string, []spatial.Line, bool) {
				v, ok := pg.RightOf(l, p.cfg.RowTolerance, hasDate)
				if !ok {
					next := pg.Following(l, 1)
					if len(next) == 0 || !hasDate(next[0]) {
						return "", nil, false
					}
					v = next[0]
				}
				d, _ := parse.FindDate(v.Text)
				return d, []spatial.Line{v}, true
			},
		},
		{
			Name:  "invoice.date_any",
			Match: hasDate,
			Extract: func(_ *spatial.Page, l spatial.Line) (string, []spatial.Line, bool) {
				d, ok := parse.FindDate(l.Text)
				return d, nil, ok
			},
		},
	}
	if v, ok := parse.FirstMatch(page, dateRules); ok {
		st.r.InvoiceDate = v
	}
}

func wordy(l spatial.Line) bool {
	return letterCount(l.Text) >= 2 && !parse.IsPriceLine(l.Text)
}

// cleanName strips amounts and label punctuation.
func cleanName(text string) string {
	return strings.TrimSpace(strings.Trim(parse.StripAmounts(text), " :-–"))
}

func (p *Parser) payment(page *spatial.Page, st *state) {
	rules := []parse.Rule[string]{
		{
			Name:  "payment.label",
			Match: func(l spatial.Line) bool { return rePaymentLabel.MatchString(l.Text) },
			Extract: func(pg *spatial.Page, l spatial.Line) (string, []spatial.Line, bool) {
				inline := cleanName(rePaymentLabel.FindStringSubmatch(l.Text)[1])
				if letterCount(inline) >= 2 {
					return inline, nil, true
				}
				if v, ok := pg.RightOf(l, p.cfg.RowTolerance, wordy); ok {
					return cleanName(v.Text), []spatial.Line{v}, true
				}
				if v, ok := pg.Below(l, p.cfg.LabelValueGap, wordy); ok {
					return cleanName(v.Text), []spatial.Line{v}, true
				}
				return "", nil, false
			},
		},
		{
			Name:  "payment.word",
			Match: func(l spatial.Line) bool { return rePaymentWord.MatchString(l.Text) },
			Extract: func(_ *spatial.Page, l spatial.Line) (string, []spatial.Line, bool) {
				return strings.ToUpper(rePaymentWord.FindStringSubmatch(l.Text)[1]), nil, true
			},
		},
	}
	if v, ok := parse.FirstMatch(page, rules); ok {
		st.r.PaymentMethod = v
	}
}

type promotion struct {
	name      string
	amount    decimal.Decimal
	hasAmount bool
}

func (p *Parser) promotions(page *spatial.Page, st *state) {
	rule := parse.Rule[promotion]{
		Name:  "receipt.promotion",
		Match: func(l spatial.Line) bool { return rePromo.MatchString(l.Text) },
		Extract: func(pg *spatial.Page, l spatial.Line) (promotion, []spatial.Line, bool) {
			promo := promotion{name: cleanName(l.Text)}
			if promo.name == "" {
				promo.name = rePromo.FindString(l.Text)
			}
			var extra []spatial.Line
			if amt, ok := parse.LastAmount(l.Text); ok {
				promo.amount, promo.hasAmount = amt, true
			} else if v, ok := pg.RightOf(l, p.cfg.RowTolerance, isPrice); ok {
				promo.amount, _ = parse.LastAmount(v.Text)
				promo.hasAmount = true
				extra = append(extra, v)
			}
			return promo, extra, true
		},
	}
	parse.EachMatch(page, rule, func(promo promotion) {
		st.r.Promotions = append(st.r.Promotions, promo.name)
		if promo.hasAmount {
			st.fees = append(st.fees, fee{name: "Discount (" + promo.name + ")", amount: promo.amount.Abs().Neg()})
		}
	})
}

func (p *Parser) feeLines(page *spatial.Page, st *state) {
	rule := parse.Rule[fee]{
		Name: "receipt.fee",
		Match: func(l spatial.Line) bool {
			return reFee.MatchString(l.Text) && !isSummaryLine(l.Text)
		},
		Extract: func(pg *spatial.Page, l spatial.Line) (fee, []spatial.Line, bool) {
			f := fee{name: cleanName(l.Text)}
			if amt, ok := parse.LastAmount(l.Text); ok {
				f.amount = amt
				return f, nil, true
			}
			for _, next := range pg.Following(l, p.cfg.FeeLookahead) {
				if isPrice(next) && next.CenterX > l.CenterX {
					f.amount, _ = parse.LastAmount(next.Text)
					return f, []spatial.Line{next}, true
				}
			}
			if reFree.MatchString(l.Text) {
				return f, nil, true
			}
			return fee{}, nil, false
		},
	}
	parse.EachMatch(page, rule, func(f fee) { st.fees = append(st.fees, f) })
}
