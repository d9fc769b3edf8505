package document

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateAcceptsEmptyShapes(t *testing.T) {
	u := NewUtilityBill()
	r := NewReceipt()
	g := NewGenericDocument()
	c := NewCustomerConsumption()
	docs := []Extracted{
		{Kind: KindUtility, Utility: &u},
		{Kind: KindReceipt, Receipt: &r},
		{Kind: KindGeneric, Generic: &g},
		{Kind: KindCustomers, Customers: &c},
	}
	for _, d := range docs {
		if err := Validate(d); err != nil {
			t.Errorf("Validate(%s): %v", d.Kind, err)
		}
	}
}

func TestValidateRejectsNulls(t *testing.T) {
	r := Receipt{} // nil slices encode as null
	if err := Validate(Extracted{Kind: KindReceipt, Receipt: &r}); err == nil {
		t.Fatal("expected null items to be rejected")
	}
	if err := Validate(Extracted{Kind: KindUtility}); err == nil {
		t.Fatal("expected missing payload to be rejected")
	}
}

func TestValidateTableCells(t *testing.T) {
	g := NewGenericDocument()
	g.Tables = append(g.Tables, Table{
		Headers: []string{"Name", "Jan"},
		Rows:    []Row{{Key: "Jane Doe", Values: map[string]any{"Jan": 120.0, "Note": "late"}}},
	})
	if err := Validate(Extracted{Kind: KindGeneric, Generic: &g}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	g.Tables[0].Rows[0].Values["Bad"] = true
	if err := Validate(Extracted{Kind: KindGeneric, Generic: &g}); err == nil {
		t.Fatal("boolean cell should be rejected")
	}
}

func TestMarshalOrMarkerHandlesCycles(t *testing.T) {
	m := map[string]any{"a": 1}
	m["self"] = m
	raw, err := MarshalOrMarker(m)
	if err == nil {
		t.Fatal("expected error for cyclic value")
	}
	var out map[string]string
	if jerr := json.Unmarshal(raw, &out); jerr != nil {
		t.Fatalf("marker is not json: %v", jerr)
	}
	if !strings.Contains(out[SerializationErrorKey], "cycle") {
		t.Errorf("marker = %v", out)
	}

	raw, err = MarshalOrMarker(map[string]int{"ok": 1})
	if err != nil || string(raw) != `{"ok":1}` {
		t.Errorf("MarshalOrMarker = %s, %v", raw, err)
	}
}

func TestSafeMarshalUnsupported(t *testing.T) {
	if _, err := SafeMarshal(map[string]any{"fn": func() {}}); err == nil {
		t.Fatal("expected unsupported type error")
	}
}
