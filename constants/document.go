package constants

import "strings"

// DocumentType is the kind of document the caller says it uploaded.
type DocumentType string

const (
	DocumentUtilityMeter DocumentType = "utility_meter"
	DocumentReceipt      DocumentType = "receipt"
	DocumentInvoice      DocumentType = "invoice"
	DocumentCustomers    DocumentType = "customers"
	DocumentGeneric      DocumentType = "generic"
)

var allDocumentTypes = []DocumentType{
	DocumentUtilityMeter,
	DocumentReceipt,
	DocumentInvoice,
	DocumentCustomers,
	DocumentGeneric,
}

// DocumentTypesAsStrings returns every accepted document type.
func DocumentTypesAsStrings() []string {
	result := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		result[i] = string(dt)
	}
	return result
}

// CanonicalDocumentType maps loose user input onto a DocumentType.
// Unknown values fall back to DocumentGeneric with ok=false.
func CanonicalDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return DocumentGeneric, false
	}

	synonyms := map[string]DocumentType{
		"meter":         DocumentUtilityMeter,
		"water_meter":   DocumentUtilityMeter,
		"utility":       DocumentUtilityMeter,
		"utility_bill":  DocumentUtilityMeter,
		"bill":          DocumentInvoice,
		"customer":      DocumentCustomers,
		"consumption":   DocumentCustomers,
		"table":         DocumentGeneric,
		"statement":     DocumentGeneric,
		"customer_list": DocumentCustomers,
	}
	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	for _, dt := range allDocumentTypes {
		if normalized == string(dt) {
			return dt, true
		}
	}
	return DocumentGeneric, false
}

// ParserKind names the rule set that turns OCR lines into a document.
type ParserKind string

const (
	ParserUtility   ParserKind = "utility"
	ParserReceipt   ParserKind = "receipt"
	ParserGeneric   ParserKind = "generic"
	ParserCustomers ParserKind = "customers"
)

// UploaderRole decides which usage counter an analysis is billed to.
type UploaderRole string

const (
	UploaderSeller   UploaderRole = "seller"
	UploaderCustomer UploaderRole = "customer"
)

// Valid reports whether r is a known role.
func (r UploaderRole) Valid() bool {
	return r == UploaderSeller || r == UploaderCustomer
}
