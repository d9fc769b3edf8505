package receipt

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/spatial"
)

type placed struct {
	text string
	x, y float64
}

func layout(lines ...placed) extract.Result {
	var raw []extract.RawLine
	for _, l := range lines {
		w := float64(10 * len(l.text))
		raw = append(raw, extract.RawLine{
			Text:        l.text,
			BoundingBox: []float64{l.x, l.y, l.x + w, l.y, l.x + w, l.y + 20, l.x, l.y + 20},
		})
	}
	return extract.Result{Pages: []extract.Page{{Lines: raw}}}
}

func TestBarcodeItem(t *testing.T) {
	p := New(parse.DefaultConfig())
	r := p.Parse(layout(
		placed{"FRESH MART LTD", 20, 0},
		placed{"High Street Leeds", 20, 40},
		placed{"5012345678900", 20, 100},
		placed{"Milk 2L", 20, 140},
		placed{"2 x 1.50", 20, 180},
		placed{"3.00", 300, 220},
	))

	want := []document.Item{{SKU: "5012345678900", Description: "Milk 2L", Quantity: 2, UnitPrice: 1.5, TotalPrice: 3}}
	if !reflect.DeepEqual(r.Items, want) {
		t.Fatalf("items = %+v, want %+v", r.Items, want)
	}
	if r.BusinessName != "FRESH MART LTD" || r.BusinessAddress != "High Street Leeds" {
		t.Errorf("header = %q / %q", r.BusinessName, r.BusinessAddress)
	}
	if r.Subtotal != 3 || r.Total != 3 {
		t.Errorf("subtotal=%v total=%v", r.Subtotal, r.Total)
	}
}

func TestBarcodeItemWithoutHeader(t *testing.T) {
	p := New(parse.DefaultConfig())
	r := p.Parse(barcodeOnly)

	want := []document.Item{{SKU: "5012345678900", Description: "Milk 2L", Quantity: 2, UnitPrice: 1.5, TotalPrice: 3}}
	if !reflect.DeepEqual(r.Items, want) {
		t.Fatalf("items = %+v, want %+v", r.Items, want)
	}
	if r.BusinessName != "" || r.BusinessAddress != "" {
		t.Errorf("header = %q / %q, want none", r.BusinessName, r.BusinessAddress)
	}
	if r.Subtotal != 3 || r.Total != 3 {
		t.Errorf("subtotal=%v total=%v", r.Subtotal, r.Total)
	}
}

func TestQtyPriceLineIsNotAnItemLine(t *testing.T) {
	p := New(parse.DefaultConfig())
	r := p.Parse(layout(placed{"2 x 1.50", 20, 0}))
	if len(r.Items) != 0 {
		t.Fatalf("qty x price without a description read as items %+v", r.Items)
	}
}

var (
	barcodeOnly = layout(
		placed{"5012345678900", 20, 100},
		placed{"Milk 2L", 20, 140},
		placed{"2 x 1.50", 20, 180},
		placed{"3.00", 300, 220},
	)

	cornerCafe = layout(
		placed{"CORNER CAFE", 20, 0},
		placed{"Market Road, Leeds", 20, 40},
		placed{"Invoice No: INV-2041", 20, 80},
		placed{"Date: 12/03/2024", 20, 120},
		placed{"Coffee 2.50", 20, 160},
		placed{"Sandwich", 20, 200},
		placed{"4.00", 300, 200},
		placed{"Delivery fee 1.50", 20, 240},
		placed{"Promo SAVE10 -0.50", 20, 280},
		placed{"Subtotal 6.50", 20, 320},
		placed{"VAT 1.00", 20, 360},
		placed{"Total 8.50", 20, 400},
		placed{"Paid by Card", 20, 440},
	)

	leafCafe = layout(
		placed{"LEAF CAFE", 20, 0},
		placed{"Tea 0.10", 20, 40},
		placed{"Delivery fee 0.20", 20, 80},
	)

	bagelHouse = layout(
		placed{"BAGEL HOUSE", 20, 0},
		placed{"2 Bagel 3.00", 20, 40},
		placed{"Total 9.99", 20, 80},
	)
)

func TestFullReceiptReconciles(t *testing.T) {
	p := New(parse.DefaultConfig())
	r := p.Parse(cornerCafe)

	if r.InvoiceNo != "INV-2041" || r.InvoiceDate != "12/03/2024" {
		t.Errorf("invoice = %q dated %q", r.InvoiceNo, r.InvoiceDate)
	}
	if r.PaymentMethod != "Card" {
		t.Errorf("payment = %q", r.PaymentMethod)
	}
	wantItems := []document.Item{
		{Description: "Coffee", Quantity: 1, UnitPrice: 2.5, TotalPrice: 2.5},
		{Description: "Sandwich", Quantity: 1, UnitPrice: 4, TotalPrice: 4},
	}
	if !reflect.DeepEqual(r.Items, wantItems) {
		t.Fatalf("items = %+v", r.Items)
	}
	wantFees := []document.Fee{
		{Name: "Discount (Promo SAVE10)", Amount: -0.5},
		{Name: "Delivery fee", Amount: 1.5},
	}
	if !reflect.DeepEqual(r.Fees, wantFees) {
		t.Errorf("fees = %+v", r.Fees)
	}
	if !reflect.DeepEqual(r.Promotions, []string{"Promo SAVE10"}) {
		t.Errorf("promotions = %v", r.Promotions)
	}
	if r.Subtotal != 6.5 || r.Tax != 1 || r.Total != 8.5 {
		t.Errorf("subtotal=%v tax=%v total=%v", r.Subtotal, r.Tax, r.Total)
	}
	if r.PrintedSubtotal != 6.5 || r.PrintedTotal != 8.5 {
		t.Errorf("printed subtotal=%v total=%v", r.PrintedSubtotal, r.PrintedTotal)
	}
}

func TestPrintedTotalIsNotTrusted(t *testing.T) {
	p := New(parse.DefaultConfig())
	r := p.Parse(bagelHouse)
	want := []document.Item{{Description: "Bagel", Quantity: 2, UnitPrice: 1.5, TotalPrice: 3}}
	if !reflect.DeepEqual(r.Items, want) {
		t.Fatalf("items = %+v", r.Items)
	}
	if r.Total != 3 || r.PrintedTotal != 9.99 {
		t.Errorf("total=%v printed=%v", r.Total, r.PrintedTotal)
	}
}

func TestEmptyReceipt(t *testing.T) {
	r := New(parse.DefaultConfig()).ParseLines(nil)
	if r.Items == nil || r.Fees == nil || r.Promotions == nil {
		t.Fatal("collections must be empty, not nil")
	}
	if r.Total != 0 || r.BusinessName != "" {
		t.Errorf("unexpected values in %+v", r)
	}
}

// addsUp checks total = subtotal + fees + tax and subtotal = sum of item totals, at cent precision.
func addsUp(t *testing.T, r document.Receipt) {
	t.Helper()
	items := decimal.Zero
	for _, it := range r.Items {
		items = items.Add(decimal.NewFromFloat(it.TotalPrice))
	}
	if !items.Equal(decimal.NewFromFloat(r.Subtotal)) {
		t.Errorf("subtotal %v, items sum to %v", r.Subtotal, items)
	}
	sum := decimal.NewFromFloat(r.Subtotal).Add(decimal.NewFromFloat(r.Tax))
	for _, f := range r.Fees {
		sum = sum.Add(decimal.NewFromFloat(f.Amount))
	}
	if !sum.Equal(decimal.NewFromFloat(r.Total)) {
		t.Errorf("total %v, parts sum to %v", r.Total, sum)
	}
}

func TestTotalsAddUp(t *testing.T) {
	tests := []struct {
		name  string
		res   extract.Result
		total float64
	}{
		{name: "tenths", res: leafCafe, total: 0.3},
		{name: "full", res: cornerCafe, total: 8.5},
		{name: "barcode", res: barcodeOnly, total: 3},
		{name: "printed total ignored", res: bagelHouse, total: 3},
	}
	p := New(parse.DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := p.Parse(tt.res)
			if r.Total != tt.total {
				t.Errorf("total = %v, want %v", r.Total, tt.total)
			}
			addsUp(t, r)
		})
	}
}

func TestReconcileRoundsFeesBeforeSumming(t *testing.T) {
	st := &state{
		r:     document.NewReceipt(),
		items: []item{{description: "Tea", qty: decimal.NewFromInt(1), unit: decimal.RequireFromString("0.10")}},
		fees: []fee{
			{name: "Service charge", amount: decimal.RequireFromString("0.125")},
			{name: "Delivery fee", amount: decimal.RequireFromString("0.125")},
		},
	}
	reconcile(nil, st)

	if st.r.Fees[0].Amount != 0.13 || st.r.Fees[1].Amount != 0.13 {
		t.Fatalf("fees = %+v", st.r.Fees)
	}
	if st.r.Total != 0.36 {
		t.Errorf("total = %v, want 0.36", st.r.Total)
	}
	addsUp(t, st.r)
}

func TestParseIsDeterministic(t *testing.T) {
	p := New(parse.DefaultConfig())
	for _, res := range []extract.Result{cornerCafe, leafCafe, barcodeOnly, bagelHouse} {
		first, second := p.Parse(res), p.Parse(res)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("two parses differ:\n%+v\n%+v", first, second)
		}
	}
}

func TestEveryLineHasOneOwner(t *testing.T) {
	tests := []struct {
		name string
		res  extract.Result
		want map[string]string
	}{
		{
			name: "barcode item",
			res:  barcodeOnly,
			want: map[string]string{
				"5012345678900": "receipt.item_sku",
				"Milk 2L":       "receipt.item_description",
				"2 x 1.50":      "receipt.item_qty",
				"3.00":          "receipt.item_total",
			},
		},
		{
			name: "full receipt",
			res:  cornerCafe,
			want: map[string]string{
				"CORNER CAFE":        "receipt.business_name",
				"Coffee 2.50":        "receipt.item_description",
				"Sandwich":           "receipt.item_description",
				"4.00":               "receipt.item_total",
				"Delivery fee 1.50":  "receipt.fee",
				"Promo SAVE10 -0.50": "receipt.promotion",
				"Subtotal 6.50":      "receipt.subtotal",
				"VAT 1.00":           "receipt.tax",
				"Total 8.50":         "receipt.total",
			},
		},
	}
	p := New(parse.DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := spatial.NewPage(spatial.Normalize(tt.res.Pages))
			p.ParsePage(page)
			if page.Refused() != 0 {
				t.Errorf("%d claims hit a line that already had an owner", page.Refused())
			}
			owners := page.Owners()
			for text, rule := range tt.want {
				if owners[text] != rule {
					t.Errorf("%q owned by %q, want %q", text, owners[text], rule)
				}
			}
		})
	}
}
