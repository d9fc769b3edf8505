package receipt

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/spatial"
)

// number parses a quantity or unit price; a comma is treated as the decimal mark.
func number(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(s), ",", ".", 1))
	return d, err == nil
}

func (p *Parser) isDescription(l spatial.Line) bool {
	t := l.Text
	if letterCount(t) < 2 || isPrice(l) || isQtyPrice(l) {
		return false
	}
	if spatial.IsBarcode(t) || spatial.IsNumerical(t) || isSummaryLine(t) {
		return false
	}
	return !p.noise.MatchString(t)
}

// fromQtyPrice reads "qty x unit [total]".
func fromQtyPrice(l spatial.Line) item {
	m := reQtyPrice.FindStringSubmatch(strings.TrimSpace(l.Text))
	var it item
	it.qty, _ = number(m[1])
	it.unit, _ = number(m[2])
	if m[3] != "" {
		it.total, _ = number(m[3])
	}
	return it
}

// explicitTotal finds the printed line total next to a qty x price line.
func (p *Parser) explicitTotal(page *spatial.Page, qty spatial.Line) (spatial.Line, bool) {
	var best spatial.Line
	bestDist := math.Inf(1)
	for _, l := range page.Unclaimed() {
		if !isPrice(l) {
			continue
		}
		if l.MidY < qty.MidY-p.cfg.RowTolerance || l.MidY-qty.MidY > p.cfg.TotalGap {
			continue
		}
		if d := spatial.Distance(qty, l); d < bestDist {
			best, bestDist = l, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

func (p *Parser) attachTotal(page *spatial.Page, qty spatial.Line, it *item) {
	if !it.total.IsZero() {
		return
	}
	if tl, ok := p.explicitTotal(page, qty); ok {
		it.total, _ = parse.LastAmount(tl.Text)
		page.Claim(tl, "receipt.item_total")
	}
}

// barcodeItems anchors items on barcode lines: description below, then qty x price, then the
// printed total in the price column.
func (p *Parser) barcodeItems(page *spatial.Page, st *state) {
	for _, b := range page.Unclaimed() {
		if page.Claimed(b) || !spatial.IsBarcode(b.Text) {
			continue
		}
		desc, ok := page.Below(b, p.cfg.DescriptionGap, p.isDescription)
		if !ok {
			continue
		}
		qty, ok := page.Below(b, p.cfg.QtyGap, isQtyPrice)
		if !ok {
			continue
		}
		it := fromQtyPrice(qty)
		it.sku = spatial.Digits(b.Text)
		it.description = strings.TrimSpace(desc.Text)
		page.Claim(b, "receipt.item_sku")
		page.Claim(desc, "receipt.item_description")
		page.Claim(qty, "receipt.item_qty")
		p.attachTotal(page, qty, &it)
		st.items = append(st.items, it)
	}
}

// descriptionItems reads items that carry no barcode.
func (p *Parser) descriptionItems(page *spatial.Page, st *state) {
	for _, d := range page.Unclaimed() {
		if page.Claimed(d) || !p.isDescription(d) {
			continue
		}
		qty, ok := page.RightOf(d, p.cfg.RowTolerance, isQtyPrice)
		if !ok {
			qty, ok = page.Below(d, p.cfg.LabelValueGap, isQtyPrice)
		}
		if ok {
			it := fromQtyPrice(qty)
			it.description = strings.TrimSpace(d.Text)
			page.Claim(d, "receipt.item_description")
			page.Claim(qty, "receipt.item_qty")
			p.attachTotal(page, qty, &it)
			st.items = append(st.items, it)
			continue
		}
		if m := reTrailPrice.FindStringSubmatch(strings.TrimSpace(d.Text)); m != nil {
			total, _ := number(m[2])
			st.items = append(st.items, item{description: strings.TrimSpace(m[1]), qty: decimal.NewFromInt(1), total: total})
			page.Claim(d, "receipt.item_description")
			continue
		}
		if pl, ok := page.RightOf(d, p.cfg.RowTolerance, isPrice); ok {
			total, _ := parse.LastAmount(pl.Text)
			st.items = append(st.items, item{description: strings.TrimSpace(d.Text), qty: decimal.NewFromInt(1), total: total})
			page.Claim(d, "receipt.item_description")
			page.Claim(pl, "receipt.item_total")
		}
	}
}

// reclassifyFees moves fee-like items (delivery, service charge) into fees.
func reclassifyFees(_ *spatial.Page, st *state) {
	kept := st.items[:0]
	for _, it := range st.items {
		if reFee.MatchString(it.description) {
			amount := it.total
			if amount.IsZero() {
				amount = it.unit.Mul(it.qty)
			}
			st.fees = append(st.fees, fee{name: it.description, amount: amount})
			continue
		}
		kept = append(kept, it)
	}
	st.items = kept
}

// lastResortItems runs only when nothing else produced items: "qty desc price" lines, then
// upper-case product names followed by a price.
func (p *Parser) lastResortItems(page *spatial.Page, st *state) {
	if len(st.items) > 0 {
		return
	}
	for _, l := range page.Unclaimed() {
		if page.Claimed(l) || isQtyPrice(l) || isSummaryLine(l.Text) || p.noise.MatchString(l.Text) {
			continue
		}
		m := reQtyDescPrice.FindStringSubmatch(strings.TrimSpace(l.Text))
		if m == nil {
			continue
		}
		qty, _ := number(m[1])
		if qty.IsZero() {
			continue
		}
		var total decimal.Decimal
		var extra []spatial.Line
		if m[3] != "" {
			total, _ = number(m[3])
		} else if pl, ok := page.RightOf(l, p.cfg.RowTolerance, isPrice); ok {
			total, _ = parse.LastAmount(pl.Text)
			extra = append(extra, pl)
		} else {
			continue
		}
		st.items = append(st.items, item{description: strings.TrimSpace(m[2]), qty: qty, unit: total.Div(qty).Round(2), total: total})
		page.Claim(l, "receipt.item_line")
		for _, e := range extra {
			page.Claim(e, "receipt.item_total")
		}
	}
	if len(st.items) > 0 {
		return
	}

	for _, l := range page.Unclaimed() {
		t := strings.TrimSpace(l.Text)
		if page.Claimed(l) || letterCount(t) < 3 || hasLower(t) || spatial.IsNumerical(t) {
			continue
		}
		if isSummaryLine(t) || p.noise.MatchString(t) {
			continue
		}
		qty := decimal.NewFromInt(1)
		var qtyLine, priceLine *spatial.Line
		for _, next := range page.Following(l, 3) {
			next := next
			if qtyLine == nil && reLoneQty.MatchString(strings.TrimSpace(next.Text)) {
				qty, _ = number(next.Text)
				qtyLine = &next
				continue
			}
			if isPrice(next) {
				priceLine = &next
				break
			}
		}
		if priceLine == nil || qty.IsZero() {
			continue
		}
		total, _ := parse.LastAmount(priceLine.Text)
		st.items = append(st.items, item{description: t, qty: qty, unit: total.Div(qty).Round(2), total: total})
		page.Claim(l, "receipt.item_description")
		page.Claim(*priceLine, "receipt.item_total")
		if qtyLine != nil {
			page.Claim(*qtyLine, "receipt.item_qty")
		}
	}
}
