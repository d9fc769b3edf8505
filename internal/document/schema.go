package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func stringProp() map[string]any { return map[string]any{"type": "string"} }
func numberProp() map[string]any { return map[string]any{"type": "number"} }

func stringList() map[string]any {
	return map[string]any{"type": "array", "items": stringProp()}
}

func cellMap() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": map[string]any{"type": []string{"number", "string"}},
	}
}

// object requires every listed property and rejects extra ones.
func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func arrayOf(item map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": item}
}

// BuildUtilitySchema describes a fully populated UtilityBill.
func BuildUtilitySchema() map[string]any {
	return object(map[string]any{
		"manufacturer": stringProp(),
		"standard":     stringProp(),
		"modelSpecs": object(map[string]any{
			"q3":          stringProp(),
			"q3q1Ratio":   stringProp(),
			"pn":          stringProp(),
			"class":       stringProp(),
			"multipliers": stringList(),
			"maxTemp":     stringProp(),
			"orientation": stringProp(),
		}),
		"serialNumber": stringProp(),
		"mainReading":  stringProp(),
	})
}

func BuildReceiptSchema() map[string]any {
	return object(map[string]any{
		"businessName":    stringProp(),
		"businessAddress": stringProp(),
		"invoiceNo":       stringProp(),
		"invoiceDate":     stringProp(),
		"items": arrayOf(object(map[string]any{
			"sku":         stringProp(),
			"description": stringProp(),
			"quantity":    numberProp(),
			"unitPrice":   numberProp(),
			"totalPrice":  numberProp(),
		})),
		"fees": arrayOf(object(map[string]any{
			"name":   stringProp(),
			"amount": numberProp(),
		})),
		"subtotal":        numberProp(),
		"tax":             numberProp(),
		"total":           numberProp(),
		"printedSubtotal": numberProp(),
		"printedTotal":    numberProp(),
		"paymentMethod":   stringProp(),
		"promotions":      stringList(),
	})
}

func tableSchema() map[string]any {
	return object(map[string]any{
		"headers": stringList(),
		"rows": arrayOf(object(map[string]any{
			"key":    stringProp(),
			"values": cellMap(),
		})),
	})
}

func BuildGenericSchema() map[string]any {
	return object(map[string]any{
		"tables": arrayOf(tableSchema()),
		"keyValuePairs": arrayOf(object(map[string]any{
			"key":   stringProp(),
			"value": stringProp(),
		})),
		"rawText":         stringProp(),
		"customerName":    stringProp(),
		"mobileNumber":    stringProp(),
		"statementDate":   stringProp(),
		"statementPeriod": stringProp(),
	})
}

func BuildCustomersSchema() map[string]any {
	return object(map[string]any{
		"headers": stringList(),
		"customers": arrayOf(object(map[string]any{
			"name":     stringProp(),
			"readings": cellMap(),
		})),
	})
}

// BuildExtractedSchema wraps the payload schema of kind in the tagged envelope.
func BuildExtractedSchema(kind Kind) (map[string]any, error) {
	var payload map[string]any
	switch kind {
	case KindUtility:
		payload = BuildUtilitySchema()
	case KindReceipt:
		payload = BuildReceiptSchema()
	case KindGeneric:
		payload = BuildGenericSchema()
	case KindCustomers:
		payload = BuildCustomersSchema()
	default:
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"kind", string(kind)},
		"properties": map[string]any{
			"kind":       map[string]any{"const": string(kind)},
			string(kind): payload,
		},
	}, nil
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[Kind]*jsonschema.Schema{}
)

func compiled(kind Kind) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[kind]; ok {
		return s, nil
	}
	schemaMap, err := BuildExtractedSchema(kind)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	url := string(kind) + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schemaCache[kind] = s
	return s, nil
}

// ValidateJSON checks encoded document bytes against the schema of kind.
func ValidateJSON(kind Kind, data []byte) error {
	schema, err := compiled(kind)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}

// Validate checks that doc is fully populated for its kind.
func Validate(doc Extracted) error {
	if doc.Payload() == nil {
		return fmt.Errorf("document of kind %q has no payload", doc.Kind)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return ValidateJSON(doc.Kind, data)
}
