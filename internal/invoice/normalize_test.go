package invoice

import (
	"slices"
	"testing"
)

func TestNormalize(t *testing.T) {
	in := map[string]any{
		"vendor":        " ACME Corp ",
		"invoice_id":    "A-9",
		"total":         "$1,234.50",
		"currency_code": "eur",
		"due_date":      nil,
		"notes":         "thanks",
		"items": []any{
			map[string]any{"description": "Widget", "price": "2.50", "quantity": -3},
			"junk",
		},
	}
	out, dropped := Normalize(in)

	if out["vendor_name"] != "ACME Corp" {
		t.Errorf("vendor_name = %v", out["vendor_name"])
	}
	if out["invoice_number"] != "A-9" {
		t.Errorf("invoice_number = %v", out["invoice_number"])
	}
	if out["total_amount"] != 1234.5 {
		t.Errorf("total_amount = %v", out["total_amount"])
	}
	if out["currency"] != "EUR" {
		t.Errorf("currency = %v", out["currency"])
	}
	if _, ok := out["due_date"]; ok {
		t.Errorf("null due_date should be dropped")
	}
	if _, ok := out["notes"]; ok {
		t.Errorf("unknown key kept")
	}
	items := out["line_items"].([]any)
	if len(items) != 1 {
		t.Fatalf("line items = %d, want 1", len(items))
	}
	li := items[0].(map[string]any)
	if li["unit_price"] != 2.5 {
		t.Errorf("unit_price = %v", li["unit_price"])
	}
	if _, ok := li["quantity"]; ok {
		t.Errorf("negative quantity should be dropped")
	}
	if !slices.Contains(dropped, "notes(unknown)") {
		t.Errorf("dropped = %v", dropped)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"usd", "USD"},
		{"US Dollars", nil},
		{"", nil},
		{nil, nil},
	}
	for _, tt := range tests {
		out, _ := Normalize(map[string]any{"vendor_name": "x", "total_amount": 1.0, "currency": tt.in})
		if got := out["currency"]; got != tt.want {
			t.Errorf("currency %v -> %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeLeavesRequiredFieldsForValidation(t *testing.T) {
	out, _ := Normalize(map[string]any{"total_amount": "n/a"})
	if out["total_amount"] != "n/a" {
		t.Errorf("required total_amount should be left for the schema to reject, got %v", out["total_amount"])
	}
	if _, err := Decode(out); err == nil {
		t.Errorf("expected validation error")
	}
}

func TestNormalizeCommaDecimalTotals(t *testing.T) {
	tests := []struct {
		in      string
		want    any
		invalid bool
	}{
		{in: "1.234,50 EUR", want: 1234.5},
		{in: "12,50", want: 12.5},
		{in: "1e3", want: "1e3", invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			out, _ := Normalize(map[string]any{"vendor_name": "Acme", "total_amount": tt.in})
			if out["total_amount"] != tt.want {
				t.Fatalf("total_amount = %v, want %v", out["total_amount"], tt.want)
			}
			_, err := Decode(out)
			if tt.invalid && err == nil {
				t.Error("expected validation error")
			}
			if !tt.invalid && err != nil {
				t.Errorf("Decode: %v", err)
			}
		})
	}
}
