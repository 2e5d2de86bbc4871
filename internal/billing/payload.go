// Package billing turns a categorized invoice into a draft bill payload and
// reconciles its lines against the extracted total.
package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	BillTypeAccountsPayable = "ACCPAY"
	BillStatusDraft         = "DRAFT"
)

// BillLine is one payable line. AccountCode is empty when the category has
// no mapping and the line needs manual coding.
type BillLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	AccountCode string          `json:"account_code,omitempty"`
}

// LineAmount is Quantity*UnitAmount.
func (l BillLine) LineAmount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitAmount)
}

// BillPayload is handed to the accounting client and then discarded.
type BillPayload struct {
	Type          string     `json:"type"`
	ContactID     string     `json:"contact_id"`
	Date          string     `json:"date"`
	DueDate       string     `json:"due_date,omitempty"`
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	Reference     string     `json:"reference"`
	Currency      string     `json:"currency,omitempty"`
	Status        string     `json:"status"`
	LineItems     []BillLine `json:"line_items"`
}

// ForContact returns a copy of p addressed to the accounting contact id.
func (p BillPayload) ForContact(id string) (BillPayload, error) {
	if strings.TrimSpace(id) == "" {
		return BillPayload{}, ErrMissingContact
	}
	p.ContactID = id
	return p, nil
}

// BillReference identifies a bill created by the accounting system.
type BillReference struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`
	Status string `json:"status,omitempty"`
}

// Report describes how the reconstructed lines compare to the extracted total.
type Report struct {
	LinesTotal         decimal.Decimal `json:"lines_total"`
	AuthoritativeTotal decimal.Decimal `json:"authoritative_total"`
	Difference         decimal.Decimal `json:"difference"`
	Discrepancy        bool            `json:"discrepancy"`
	FallbackLine       bool            `json:"fallback_line"`
	AccountCode        string          `json:"account_code,omitempty"`
}
