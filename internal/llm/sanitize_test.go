package llm

import "testing"

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "99.99", want: 99.99, ok: true},
		{in: "$1,234.50", want: 1234.50, ok: true},
		{in: " EUR 12 ", want: 12, ok: true},
		{in: "(5.00)", want: -5, ok: true},
		{in: "-12.00", want: -12, ok: true},
		{in: "1,234", want: 1234, ok: true},
		{in: "12,50", want: 12.5, ok: true},
		{in: "1.234,50 EUR", want: 1234.5, ok: true},
		{in: "€ 1 234,56", want: 1234.56, ok: true},
		{in: "CHF 1'234.50", want: 1234.5, ok: true},
		{in: "1.234.567", want: 1234567, ok: true},
		{in: "$.50", want: 0.5, ok: true},
		{in: "Rs.100", want: 100, ok: true},
		{in: "n/a", ok: false},
		{in: "", ok: false},
		{in: "1e3", ok: false},
		{in: "1.2.3", ok: false},
		{in: "1,2345", ok: false},
		{in: "12.5.0,1", ok: false},
		{in: "12-", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMoney(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSanitizer(t *testing.T) {
	m := map[string]any{
		"vendor":       " ACME ",
		"total_amount": "$10.00",
		"due_date":     nil,
		"currency":     "",
		"amount":       "unknown",
		"confidence":   0.9,
	}
	s := NewSanitizer(m).
		Rename("vendor", "vendor_name").
		TrimOptionalStrings("vendor_name", "due_date", "currency").
		CoerceNumbers(map[string]bool{"total_amount": true}, "total_amount", "amount").
		DropUnknown(map[string]struct{}{"vendor_name": {}, "total_amount": {}, "amount": {}})

	out := s.Map()
	if out["vendor_name"] != "ACME" {
		t.Errorf("vendor_name = %v", out["vendor_name"])
	}
	if out["total_amount"] != 10.0 {
		t.Errorf("total_amount = %v", out["total_amount"])
	}
	for _, k := range []string{"due_date", "currency", "amount", "confidence", "vendor"} {
		if _, ok := out[k]; ok {
			t.Errorf("expected %s to be dropped", k)
		}
	}
	if len(s.Dropped) == 0 {
		t.Errorf("expected dropped entries to be recorded")
	}
}

func TestCoerceNumbersKeepsUnparseableRequired(t *testing.T) {
	m := map[string]any{"total_amount": "abc"}
	NewSanitizer(m).CoerceNumbers(map[string]bool{"total_amount": true}, "total_amount")
	if m["total_amount"] != "abc" {
		t.Errorf("required field should be left for schema validation, got %v", m["total_amount"])
	}
}
