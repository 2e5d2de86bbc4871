package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoicebot/internal/invoice"
)

var accounts = AccountMap{"Software & Subscriptions": "485", "Travel": "493"}

func fixedClock() time.Time { return time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC) }

func newMapper() *Mapper { return NewMapper(accounts, nil).WithClock(fixedClock) }

func TestBuildReconcilesLines(t *testing.T) {
	data := invoice.ExtractedInvoiceData{
		VendorName:    "Acme Cloud Ltd",
		InvoiceNumber: "INV-7",
		IssueDate:     "01/03/2024",
		DueDate:       "2024-03-31",
		Currency:      "USD",
		TotalAmount:   150.75,
		LineItems: []invoice.LineItem{
			{Description: "Seats", Quantity: invoice.Float(2), UnitPrice: invoice.Float(50)},
			{Description: "Storage", Quantity: invoice.Float(4), Amount: invoice.Float(40)},
			{Amount: invoice.Float(10)},
		},
	}
	payload, report, err := newMapper().Build(context.Background(), data, "Software & Subscriptions")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if payload.Type != "ACCPAY" || payload.Status != "DRAFT" {
		t.Errorf("type/status = %s/%s", payload.Type, payload.Status)
	}
	if payload.Date != "2024-03-01" {
		t.Errorf("date = %s, want 2024-03-01", payload.Date)
	}
	if payload.DueDate != "2024-03-31" {
		t.Errorf("due date = %s", payload.DueDate)
	}
	if payload.Reference != "Invoice Upload: Inv INV-7" {
		t.Errorf("reference = %q", payload.Reference)
	}
	if len(payload.LineItems) != 3 {
		t.Fatalf("lines = %d", len(payload.LineItems))
	}
	storage := payload.LineItems[1]
	if !storage.UnitAmount.Equal(decimal.NewFromInt(10)) || !storage.Quantity.Equal(decimal.NewFromInt(4)) {
		t.Errorf("storage line = %s x %s", storage.Quantity, storage.UnitAmount)
	}
	third := payload.LineItems[2]
	if third.Description != "Item from Acme Cloud Ltd" || !third.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("third line = %+v", third)
	}
	for _, l := range payload.LineItems {
		if l.AccountCode != "485" {
			t.Errorf("account code = %q", l.AccountCode)
		}
	}

	if !report.LinesTotal.Equal(decimal.NewFromInt(150)) {
		t.Errorf("lines total = %s, want 150", report.LinesTotal)
	}
	if !report.Discrepancy {
		t.Errorf("expected a discrepancy for 150.75 vs 150.00")
	}
	if !report.AuthoritativeTotal.Equal(decimal.RequireFromString("150.75")) {
		t.Errorf("authoritative total = %s", report.AuthoritativeTotal)
	}
}

func TestBuildWithinTolerance(t *testing.T) {
	data := invoice.ExtractedInvoiceData{
		VendorName:  "ACME",
		TotalAmount: 30.01,
		LineItems: []invoice.LineItem{
			{Description: "a", Quantity: invoice.Float(3), UnitPrice: invoice.Float(10)},
		},
	}
	_, report, err := newMapper().Build(context.Background(), data, "Travel")
	if err != nil {
		t.Fatal(err)
	}
	if report.Discrepancy {
		t.Errorf("0.01 difference should be within tolerance")
	}
}

func TestBuildFallbackLine(t *testing.T) {
	data := invoice.ExtractedInvoiceData{VendorName: "ACME", TotalAmount: 99.99, LineItems: []invoice.LineItem{}}
	payload, report, err := newMapper().Build(context.Background(), data, "Travel")
	if err != nil {
		t.Fatal(err)
	}
	if len(payload.LineItems) != 1 {
		t.Fatalf("lines = %d, want 1", len(payload.LineItems))
	}
	l := payload.LineItems[0]
	if l.Description != "Invoice N/A from ACME" {
		t.Errorf("description = %q", l.Description)
	}
	if !l.UnitAmount.Equal(decimal.RequireFromString("99.99")) || !l.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("line = %s x %s", l.Quantity, l.UnitAmount)
	}
	if !report.FallbackLine || report.Discrepancy {
		t.Errorf("report = %+v", report)
	}
	if payload.Date != "2024-05-06" {
		t.Errorf("missing issue date should fall back to today, got %s", payload.Date)
	}
	if payload.Reference != "Invoice Upload: Inv N/A" {
		t.Errorf("reference = %q", payload.Reference)
	}
}

func TestBuildWithoutAccountMapping(t *testing.T) {
	data := invoice.ExtractedInvoiceData{VendorName: "ACME", TotalAmount: 5}
	payload, _, err := newMapper().Build(context.Background(), data, "Office Supplies")

	var nm *NoMappingError
	if !errors.As(err, &nm) || nm.Category != "Office Supplies" {
		t.Fatalf("expected NoMappingError, got %v", err)
	}
	if !errors.Is(err, ErrNoMapping) || !IsNoMapping(err) {
		t.Errorf("expected ErrNoMapping in chain")
	}
	if len(payload.LineItems) != 1 || payload.LineItems[0].AccountCode != "" {
		t.Errorf("payload should still be built without an account code: %+v", payload)
	}
}

func TestBuildPreconditions(t *testing.T) {
	m := newMapper()
	if _, _, err := m.Build(context.Background(), invoice.ExtractedInvoiceData{TotalAmount: 1}, "Travel"); !errors.Is(err, ErrMissingVendor) {
		t.Errorf("err = %v, want ErrMissingVendor", err)
	}
	payload, _, err := m.Build(context.Background(), invoice.ExtractedInvoiceData{VendorName: "x", TotalAmount: 1}, "Travel")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if payload.ContactID != "" {
		t.Errorf("contact set before resolution: %q", payload.ContactID)
	}
	if _, err := payload.ForContact(" "); !errors.Is(err, ErrMissingContact) {
		t.Errorf("err = %v, want ErrMissingContact", err)
	}
	addressed, err := payload.ForContact("contact-1")
	if err != nil || addressed.ContactID != "contact-1" {
		t.Errorf("ForContact = %+v, %v", addressed, err)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-01", "2024-03-01", true},
		{"01/03/2024", "2024-03-01", true},
		{"03/25/2024", "2024-03-25", true},
		{"05-Feb-2024", "2024-02-05", true},
		{"20240229", "2024-02-29", true},
		{" 2024-01-02 ", "2024-01-02", true},
		{"March 1st", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDate(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeDate(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBuildDropsUnparseableDueDate(t *testing.T) {
	data := invoice.ExtractedInvoiceData{VendorName: "ACME", TotalAmount: 1, IssueDate: "soon", DueDate: "later"}
	payload, _, err := newMapper().Build(context.Background(), data, "Travel")
	if err != nil {
		t.Fatal(err)
	}
	if payload.DueDate != "" {
		t.Errorf("due date = %q, want empty", payload.DueDate)
	}
	if payload.Date != "2024-05-06" {
		t.Errorf("date = %q", payload.Date)
	}
}
