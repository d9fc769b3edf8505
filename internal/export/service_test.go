package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/entity"
	"github.com/joseph-ayodele/docscan/internal/repository"
)

func open(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func rows(t *testing.T, f *excelize.File, sheet string) [][]string {
	t.Helper()
	r, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows(%s): %v", sheet, err)
	}
	return r
}

func TestWorkbookSheets(t *testing.T) {
	customers := document.NewCustomerConsumption()
	customers.Headers = []string{"Name", "Jan"}
	customers.Customers = []document.Customer{{Name: "Jane Doe", Readings: map[string]any{"Jan": 120.0}}}

	receipt := document.NewReceipt()
	receipt.BusinessName = "CORNER CAFE"
	receipt.InvoiceNo = "INV-1"
	receipt.Items = []document.Item{{Description: "Coffee", Quantity: 2, UnitPrice: 1.25, TotalPrice: 2.5}}
	receipt.Subtotal, receipt.Total = 2.5, 2.5

	generic := document.NewGenericDocument()
	generic.CustomerName = "John Smith"
	generic.Tables = []document.Table{{
		Headers: []string{"Item", "Qty"},
		Rows:    []document.Row{{Key: "Bolts", Values: map[string]any{"Qty": 4.0, "column3": "loose"}}},
	}}

	b, err := Workbook(
		document.Extracted{Kind: document.KindCustomers, Customers: &customers},
		document.Extracted{Kind: document.KindReceipt, Receipt: &receipt},
		document.Extracted{Kind: document.KindGeneric, Generic: &generic},
	)
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}
	f := open(t, b)

	if got, want := rows(t, f, "Customers"), [][]string{{"Name", "Jan"}, {"Jane Doe", "120"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("Customers = %v, want %v", got, want)
	}
	if got := rows(t, f, "Receipts"); len(got) != 2 || got[1][0] != "CORNER CAFE" || got[1][2] != "INV-1" {
		t.Errorf("Receipts = %v", got)
	}
	if got := rows(t, f, "Receipt Items"); len(got) != 2 || got[1][2] != "Coffee" {
		t.Errorf("Receipt Items = %v", got)
	}
	if got, want := rows(t, f, "Table 1"), [][]string{{"Item", "Qty", "column3"}, {"Bolts", "4", "loose"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("Table 1 = %v, want %v", got, want)
	}
	if got := rows(t, f, "Fields"); len(got) != 2 || got[1][1] != "John Smith" {
		t.Errorf("Fields = %v", got)
	}
}

func TestEmptyWorkbook(t *testing.T) {
	b, err := Workbook()
	if err != nil {
		t.Fatal(err)
	}
	if f := open(t, b); f.GetSheetName(0) != "Empty" {
		t.Errorf("first sheet = %q", f.GetSheetName(0))
	}
}

func TestExportAnalysis(t *testing.T) {
	ctx := context.Background()
	stores, err := repository.OpenStores(ctx, common.DatabaseConfig{Driver: common.StoreSQLite, DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer stores.Close()

	bill := document.NewUtilityBill()
	bill.SerialNumber = "12345678"
	parsed, _ := json.Marshal(document.Extracted{Kind: document.KindUtility, Utility: &bill})

	ev, _, err := stores.Events.InsertIfAbsent(ctx, &entity.AnalysisEvent{
		SellerID:     "seller",
		UploaderType: constants.UploaderSeller,
		DedupeKeys:   entity.DedupeKeys{ContentHash: "h"},
	})
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(stores.Events, nil)
	if _, err := svc.ExportAnalysisXLSX(ctx, ev.AnalysisID); !errors.Is(err, common.ErrAnalysisPending) {
		t.Fatalf("uncached export error = %v", err)
	}
	if err := stores.Events.SaveCache(ctx, ev.AnalysisID, entity.CachedOCRData{ParsedFields: parsed}); err != nil {
		t.Fatal(err)
	}
	b, err := svc.ExportAnalysisXLSX(ctx, ev.AnalysisID)
	if err != nil {
		t.Fatalf("ExportAnalysisXLSX: %v", err)
	}
	if got := rows(t, open(t, b), "Meters"); len(got) != 2 || got[1][2] != "12345678" {
		t.Errorf("Meters = %v", got)
	}
}
