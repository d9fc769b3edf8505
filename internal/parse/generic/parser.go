// Package generic reads tabular documents: tables, key-value pairs and the statement header
// fields, plus the customer consumption view of a table.
package generic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/parse"
	"github.com/joseph-ayodele/docscan/internal/spatial"
)

type Parser struct {
	cfg parse.TableConfig
}

func New(cfg parse.Config) *Parser {
	return &Parser{cfg: cfg.Table}
}

func (p *Parser) Parse(res extract.Result) document.GenericDocument {
	doc := document.NewGenericDocument()
	doc.Tables = p.tables(res)
	doc.KeyValuePairs = keyValues(res)
	doc.RawText = rawText(res)

	doc.CustomerName, doc.MobileNumber = customerName(doc.RawText)
	if doc.MobileNumber == "" {
		doc.MobileNumber = mobileNumber(doc.RawText)
	}
	doc.StatementDate, doc.StatementPeriod = statement(doc.RawText)
	return doc
}

// ParseCustomers reads every table as one customer per row: the first cell is the name and
// the remaining cells are readings keyed by period header.
func (p *Parser) ParseCustomers(res extract.Result) document.CustomerConsumption {
	out := document.NewCustomerConsumption()
	for _, t := range p.tables(res) {
		if len(out.Headers) == 0 {
			out.Headers = append(out.Headers, t.Headers...)
		}
		for _, row := range t.Rows {
			if row.Key == "" {
				continue
			}
			out.Customers = append(out.Customers, document.Customer{Name: row.Key, Readings: row.Values})
		}
	}
	return out
}

func rawText(res extract.Result) string {
	if res.Layout != nil && res.Layout.Content != "" {
		return res.Layout.Content
	}
	lines := spatial.Normalize(res.Pages)
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

func keyValues(res extract.Result) []document.KeyValue {
	out := []document.KeyValue{}
	if res.Layout != nil && (len(res.Layout.KeyValuePairs) > 0 || len(res.Layout.Fields) > 0) {
		for _, kv := range res.Layout.KeyValuePairs {
			key := strings.TrimSpace(strings.TrimRight(kv.Key.Content, ": "))
			if key == "" {
				continue
			}
			out = append(out, document.KeyValue{Key: key, Value: strings.TrimSpace(kv.Value.Content)})
		}
		names := make([]string, 0, len(res.Layout.Fields))
		for name := range res.Layout.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if f := res.Layout.Fields[name]; f.Value != nil {
				out = append(out, document.KeyValue{Key: name, Value: fmt.Sprint(f.Value)})
			}
		}
		return out
	}
	for _, l := range spatial.Normalize(res.Pages) {
		if m := reKeyValue.FindStringSubmatch(strings.TrimSpace(l.Text)); m != nil {
			out = append(out, document.KeyValue{Key: strings.TrimSpace(m[1]), Value: strings.TrimSpace(m[2])})
		}
	}
	return out
}
