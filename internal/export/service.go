// Package export renders parsed documents as XLSX workbooks.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/repository"
)

// Service is a tiny façade over the analysis store that produces XLSX bytes for exports.
type Service struct {
	events repository.AnalysisEventRepository
	logger *slog.Logger
}

func NewService(events repository.AnalysisEventRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{events: events, logger: logger}
}

// ExportAnalysisXLSX returns a workbook for the cached parsed fields of each analysis.
func (s *Service) ExportAnalysisXLSX(ctx context.Context, analysisIDs ...string) ([]byte, error) {
	start := time.Now()
	docs := make([]document.Extracted, 0, len(analysisIDs))
	for _, id := range analysisIDs {
		ev, err := s.events.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load analysis %s: %w", id, err)
		}
		if !ev.Cached() {
			return nil, common.WrapError(common.ErrAnalysisPending, "analysis "+id)
		}
		doc, err := Decode(ev.CachedOCRData.ParsedFields)
		if err != nil {
			return nil, fmt.Errorf("analysis %s: %w", id, err)
		}
		docs = append(docs, doc)
	}

	buf, err := Workbook(docs...)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"analyses", len(analysisIDs),
		"bytes", len(buf),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

// Decode reads parsed fields as stored in the analysis cache.
func Decode(parsed []byte) (document.Extracted, error) {
	var doc document.Extracted
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return doc, fmt.Errorf("decode parsed fields: %w", err)
	}
	if doc.Payload() == nil {
		return doc, fmt.Errorf("%w: parsed fields carry no %q payload", common.ErrInvalidInput, doc.Kind)
	}
	return doc, nil
}

// Workbook writes docs into one workbook, one group of sheets per document kind.
func Workbook(docs ...document.Extracted) ([]byte, error) {
	w := newWriter()
	for _, d := range docs {
		if d.Payload() == nil {
			continue
		}
		switch d.Kind {
		case document.KindReceipt:
			w.receipt(*d.Receipt)
		case document.KindUtility:
			w.utility(*d.Utility)
		case document.KindCustomers:
			w.customers(*d.Customers)
		case document.KindGeneric:
			w.generic(*d.Generic)
		}
	}
	return w.bytes()
}

// writer appends rows to sheets that are created on first use.
type writer struct {
	f    *excelize.File
	rows map[string]int
	used bool
}

func newWriter() *writer {
	return &writer{f: excelize.NewFile(), rows: map[string]int{}}
}

func (w *writer) sheet(name string, headers ...string) string {
	if _, ok := w.rows[name]; ok {
		return name
	}
	if !w.used {
		// reuse the default sheet for the first one
		_ = w.f.SetSheetName(w.f.GetSheetName(0), name)
		w.used = true
	} else if _, err := w.f.NewSheet(name); err != nil {
		return name
	}
	w.rows[name] = 0
	if len(headers) > 0 {
		w.append(name, anySlice(headers)...)
	}
	return name
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (w *writer) append(sheet string, values ...any) {
	w.rows[sheet]++
	cell, _ := excelize.CoordinatesToCellName(1, w.rows[sheet])
	_ = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *writer) receipt(r document.Receipt) {
	s := w.sheet("Receipts", "Business", "Address", "Invoice No", "Invoice Date", "Payment",
		"Subtotal", "Fees", "Tax", "Total", "Printed Total", "Promotions")
	fees := 0.0
	for _, f := range r.Fees {
		fees += f.Amount
	}
	w.append(s, r.BusinessName, r.BusinessAddress, r.InvoiceNo, r.InvoiceDate, r.PaymentMethod,
		r.Subtotal, fees, r.Tax, r.Total, r.PrintedTotal, fmt.Sprint(r.Promotions))

	items := w.sheet("Receipt Items", "Invoice No", "SKU", "Description", "Quantity", "Unit Price", "Total")
	for _, it := range r.Items {
		w.append(items, r.InvoiceNo, it.SKU, it.Description, it.Quantity, it.UnitPrice, it.TotalPrice)
	}
	for _, f := range r.Fees {
		w.append(items, r.InvoiceNo, "", f.Name, 1, f.Amount, f.Amount)
	}
	_ = w.f.SetColWidth(s, "A", "B", 28)
	_ = w.f.SetColWidth(items, "C", "C", 36)
}

func (w *writer) utility(u document.UtilityBill) {
	s := w.sheet("Meters", "Manufacturer", "Standard", "Serial Number", "Main Reading", "Q3", "Q3/Q1",
		"PN", "Class", "Multipliers", "Max Temp", "Orientation")
	m := u.ModelSpecs
	w.append(s, u.Manufacturer, u.Standard, u.SerialNumber, u.MainReading, m.Q3, m.Q3Q1Ratio,
		m.PN, m.Class, fmt.Sprint(m.Multipliers), m.MaxTemp, m.Orientation)
}

func (w *writer) customers(c document.CustomerConsumption) {
	cols := columns(c.Headers, func(yield func(map[string]any)) {
		for _, cu := range c.Customers {
			yield(cu.Readings)
		}
	})
	name := "Name"
	if len(c.Headers) > 0 && c.Headers[0] != "" {
		name = c.Headers[0]
	}
	s := w.sheet("Customers", append([]string{name}, cols...)...)
	for _, cu := range c.Customers {
		row := []any{cu.Name}
		for _, col := range cols {
			row = append(row, valueOrBlank(cu.Readings[col]))
		}
		w.append(s, row...)
	}
}

func (w *writer) generic(g document.GenericDocument) {
	if len(g.KeyValuePairs) > 0 || g.CustomerName != "" || g.StatementDate != "" {
		s := w.sheet("Fields", "Key", "Value")
		for _, kv := range []document.KeyValue{
			{Key: "Customer Name", Value: g.CustomerName},
			{Key: "Mobile Number", Value: g.MobileNumber},
			{Key: "Statement Date", Value: g.StatementDate},
			{Key: "Statement Period", Value: g.StatementPeriod},
		} {
			if kv.Value != "" {
				w.append(s, kv.Key, kv.Value)
			}
		}
		for _, kv := range g.KeyValuePairs {
			w.append(s, kv.Key, kv.Value)
		}
	}
	for _, t := range g.Tables {
		cols := columns(t.Headers, func(yield func(map[string]any)) {
			for _, r := range t.Rows {
				yield(r.Values)
			}
		})
		key := ""
		if len(t.Headers) > 0 {
			key = t.Headers[0]
		}
		s := w.sheet(fmt.Sprintf("Table %d", w.tableCount()+1), append([]string{key}, cols...)...)
		for _, r := range t.Rows {
			row := []any{r.Key}
			for _, col := range cols {
				row = append(row, valueOrBlank(r.Values[col]))
			}
			w.append(s, row...)
		}
	}
}

func (w *writer) tableCount() int {
	n := 0
	for name := range w.rows {
		var i int
		if _, err := fmt.Sscanf(name, "Table %d", &i); err == nil {
			n++
		}
	}
	return n
}

// columns lists the value columns: headers after the key column first, then any extra keys sorted.
func columns(headers []string, each func(func(map[string]any))) []string {
	var cols []string
	seen := map[string]bool{}
	for i, h := range headers {
		if i == 0 || h == "" || seen[h] {
			continue
		}
		seen[h] = true
		cols = append(cols, h)
	}
	var extra []string
	each(func(values map[string]any) {
		for k := range values {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	})
	sort.Strings(extra)
	return append(cols, extra...)
}

func valueOrBlank(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func (w *writer) bytes() ([]byte, error) {
	if !w.used {
		w.sheet("Empty")
	}
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return nil, fmt.Errorf("xlsx close: %w", err)
	}
	return buf.Bytes(), nil
}
