// Package invoice turns document text into a validated ExtractedInvoiceData.
package invoice

import (
	"fmt"

	"github.com/joseph-ayodele/invoicebot/internal/common"
)

// LineItem is one billed item. Amount should approximate Quantity*UnitPrice
// when both are present; model output is noisy so that is not enforced.
type LineItem struct {
	Description string   `json:"description,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
}

// ExtractedInvoiceData is the canonical structured invoice. Values are only
// handed out after Validate succeeds and are treated as immutable.
type ExtractedInvoiceData struct {
	VendorName    string     `json:"vendor_name"`
	VendorAddress string     `json:"vendor_address,omitempty"`
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	IssueDate     string     `json:"issue_date,omitempty"`
	DueDate       string     `json:"due_date,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	TotalAmount   float64    `json:"total_amount"`
	LineItems     []LineItem `json:"line_items"`
}

// Validate applies the struct-level rules that JSON Schema cannot express
// on its own after decoding.
func (d ExtractedInvoiceData) Validate() error {
	v := common.NewValidator()
	v.Field("vendor_name", d.VendorName, common.Required)
	v.Field("currency", d.Currency, common.CurrencyCode)
	if d.LineItems == nil {
		v.Field("line_items", nil, common.Required)
	}
	for i, li := range d.LineItems {
		v.Field(fmt.Sprintf("line_items[%d].quantity", i), li.Quantity, common.NonNegative)
		v.Field(fmt.Sprintf("line_items[%d].unit_price", i), li.UnitPrice, common.NonNegative)
	}
	return v.Error()
}

// Clone returns a deep copy so downstream stages never share line item pointers.
func (d ExtractedInvoiceData) Clone() ExtractedInvoiceData {
	out := d
	out.LineItems = make([]LineItem, len(d.LineItems))
	for i, li := range d.LineItems {
		out.LineItems[i] = LineItem{
			Description: li.Description,
			Quantity:    clonePtr(li.Quantity),
			UnitPrice:   clonePtr(li.UnitPrice),
			Amount:      clonePtr(li.Amount),
		}
	}
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Float returns a pointer to v; handy for fixtures and payload building.
func Float(v float64) *float64 { return &v }
