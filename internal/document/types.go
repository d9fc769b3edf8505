// Package document defines the structured outputs of the parsers.
// Every field is always populated: empty strings, zeros and empty lists, never null.
package document

type Kind string

const (
	KindUtility   Kind = "utility"
	KindReceipt   Kind = "receipt"
	KindGeneric   Kind = "generic"
	KindCustomers Kind = "customers"
)

// Extracted is a tagged union; exactly the payload named by Kind is set.
type Extracted struct {
	Kind      Kind                 `json:"kind"`
	Utility   *UtilityBill         `json:"utility,omitempty"`
	Receipt   *Receipt             `json:"receipt,omitempty"`
	Generic   *GenericDocument     `json:"generic,omitempty"`
	Customers *CustomerConsumption `json:"customers,omitempty"`
}

// Payload returns the set variant, or nil when the variant named by Kind is missing.
func (e Extracted) Payload() any {
	switch {
	case e.Kind == KindUtility && e.Utility != nil:
		return e.Utility
	case e.Kind == KindReceipt && e.Receipt != nil:
		return e.Receipt
	case e.Kind == KindGeneric && e.Generic != nil:
		return e.Generic
	case e.Kind == KindCustomers && e.Customers != nil:
		return e.Customers
	}
	return nil
}

type UtilityBill struct {
	Manufacturer string     `json:"manufacturer"`
	Standard     string     `json:"standard"`
	ModelSpecs   ModelSpecs `json:"modelSpecs"`
	SerialNumber string     `json:"serialNumber"`
	MainReading  string     `json:"mainReading"`
}

type ModelSpecs struct {
	Q3          string   `json:"q3"`
	Q3Q1Ratio   string   `json:"q3q1Ratio"`
	PN          string   `json:"pn"`
	Class       string   `json:"class"`
	Multipliers []string `json:"multipliers"`
	MaxTemp     string   `json:"maxTemp"`
	Orientation string   `json:"orientation"`
}

func NewUtilityBill() UtilityBill {
	return UtilityBill{ModelSpecs: ModelSpecs{Multipliers: []string{}}}
}

type Receipt struct {
	BusinessName    string   `json:"businessName"`
	BusinessAddress string   `json:"businessAddress"`
	InvoiceNo       string   `json:"invoiceNo"`
	InvoiceDate     string   `json:"invoiceDate"`
	Items           []Item   `json:"items"`
	Fees            []Fee    `json:"fees"`
	Subtotal        float64  `json:"subtotal"`
	Tax             float64  `json:"tax"`
	Total           float64  `json:"total"`
	PrintedSubtotal float64  `json:"printedSubtotal"`
	PrintedTotal    float64  `json:"printedTotal"`
	PaymentMethod   string   `json:"paymentMethod"`
	Promotions      []string `json:"promotions"`
}

type Item struct {
	SKU         string  `json:"sku"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
}

type Fee struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

func NewReceipt() Receipt {
	return Receipt{Items: []Item{}, Fees: []Fee{}, Promotions: []string{}}
}

type GenericDocument struct {
	Tables          []Table    `json:"tables"`
	KeyValuePairs   []KeyValue `json:"keyValuePairs"`
	RawText         string     `json:"rawText"`
	CustomerName    string     `json:"customerName"`
	MobileNumber    string     `json:"mobileNumber"`
	StatementDate   string     `json:"statementDate"`
	StatementPeriod string     `json:"statementPeriod"`
}

// Table has a header row and data rows keyed by their first cell.
// Cell values are float64 when numeric, otherwise strings.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

type Row struct {
	Key    string         `json:"key"`
	Values map[string]any `json:"values"`
}

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewGenericDocument() GenericDocument {
	return GenericDocument{Tables: []Table{}, KeyValuePairs: []KeyValue{}}
}

type CustomerConsumption struct {
	Headers   []string   `json:"headers"`
	Customers []Customer `json:"customers"`
}

type Customer struct {
	Name     string         `json:"name"`
	Readings map[string]any `json:"readings"`
}

func NewCustomerConsumption() CustomerConsumption {
	return CustomerConsumption{Headers: []string{}, Customers: []Customer{}}
}
