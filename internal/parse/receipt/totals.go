package receipt

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/spatial"
)

// amountRule reads a labelled amount: inline, then right of the label, then the next line.
func (p *Parser) amountRule(name string, match func(string) bool) parse.Rule[decimal.Decimal] {
	return parse.Rule[decimal.Decimal]{
		Name:  name,
		Match: func(l spatial.Line) bool { return match(l.Text) },
		Extract: func(pg *spatial.Page, l spatial.Line) (decimal.Decimal, []spatial.Line, bool) {
			if amt, ok := parse.LastAmount(l.Text); ok {
				return amt, nil, true
			}
			if v, ok := pg.RightOf(l, p.cfg.RowTolerance, isPrice); ok {
				amt, _ := parse.LastAmount(v.Text)
				return amt, []spatial.Line{v}, true
			}
			if next := pg.Following(l, 1); len(next) == 1 && isPrice(next[0]) {
				amt, _ := parse.LastAmount(next[0].Text)
				return amt, next, true
			}
			return decimal.Zero, nil, false
		},
	}
}

func matches(re *regexp.Regexp, not ...*regexp.Regexp) func(string) bool {
	return func(s string) bool {
		if !re.MatchString(s) {
			return false
		}
		for _, n := range not {
			if n.MatchString(s) {
				return false
			}
		}
		return true
	}
}

func (p *Parser) totals(page *spatial.Page, st *state) {
	if v, ok := parse.FirstMatch(page, []parse.Rule[decimal.Decimal]{p.amountRule("receipt.subtotal", matches(reSubtotal))}); ok {
		st.r.PrintedSubtotal = parse.Money(v)
	}
	if v, ok := parse.FirstMatch(page, []parse.Rule[decimal.Decimal]{p.amountRule("receipt.tax", matches(reTax, reTaxNoise, reTotal, reSubtotal))}); ok {
		st.tax = v
	}
	if v, ok := parse.FirstMatch(page, []parse.Rule[decimal.Decimal]{p.amountRule("receipt.total", matches(reTotal, reSubtotal, reTotalNot))}); ok {
		st.r.PrintedTotal = parse.Money(v)
	}
}

// reconcile recomputes every money field: item total = qty x unit, subtotal = sum of items,
// total = subtotal + fees + tax. Printed figures stay in the Printed* fields.
func reconcile(_ *spatial.Page, st *state) {
	one := decimal.NewFromInt(1)
	subtotal := decimal.Zero
	for _, it := range st.items {
		qty := it.qty
		if qty.LessThanOrEqual(decimal.Zero) {
			qty = one
		}
		unit := it.unit
		if unit.IsZero() && !it.total.IsZero() {
			unit = it.total.Div(qty).Round(2)
		}
		line := qty.Mul(unit).Round(2)
		subtotal = subtotal.Add(line)
		st.r.Items = append(st.r.Items, document.Item{
			SKU:         it.sku,
			Description: it.description,
			Quantity:    qty.InexactFloat64(),
			UnitPrice:   parse.Money(unit),
			TotalPrice:  parse.Money(line),
		})
	}
	st.r.Subtotal = parse.Money(subtotal)
	st.r.Tax = parse.Money(st.tax)
	// total is the sum of the rounded figures
	total := decimal.NewFromFloat(st.r.Subtotal).Add(decimal.NewFromFloat(st.r.Tax))
	for _, f := range st.fees {
		amount := parse.Money(f.amount)
		st.r.Fees = append(st.r.Fees, document.Fee{Name: f.name, Amount: amount})
		total = total.Add(decimal.NewFromFloat(amount))
	}
	st.r.Total = parse.Money(total)
}
