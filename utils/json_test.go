package utils_test

import (
	"encoding/json"
	"testing"

	"github.com/rasamasa/franchise_backend/utils"
	"github.com/shopspring/decimal"
)

func TestNumericAcceptsNumbersAndStrings(t *testing.T) {
	type payload struct {
		Qty utils.Numeric `json:"qty"`
	}

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"bare number", `{"qty": 12.5}`, "12.5"},
		{"quoted number", `{"qty": "12.5"}`, "12.5"},
		{"negative number", `{"qty": -3}`, "-3"},
		{"integer string", `{"qty": "40"}`, "40"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p payload
			if err := json.Unmarshal([]byte(tc.raw), &p); err != nil {
				t.Fatalf("unmarshal %s: %v", tc.raw, err)
			}
			d, err := p.Qty.Decimal()
			if err != nil {
				t.Fatalf("Decimal() on %q: %v", p.Qty, err)
			}
			if !d.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("got %s, want %s", d, tc.want)
			}
		})
	}
}

func TestNumericRejectsGarbageAndNull(t *testing.T) {
	type payload struct {
		Qty utils.Numeric `json:"qty"`
	}

	var p payload
	if err := json.Unmarshal([]byte(`{"qty": null}`), &p); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !p.Qty.IsZeroValue() {
		t.Fatalf("null should leave the zero value, got %q", p.Qty)
	}
	if _, err := p.Qty.Decimal(); err == nil {
		t.Fatalf("Decimal() on empty value did not fail")
	}

	if err := json.Unmarshal([]byte(`{"qty": "12kg"}`), &p); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if _, err := p.Qty.Decimal(); err == nil {
		t.Fatalf("Decimal() on %q did not fail", p.Qty)
	}
}
