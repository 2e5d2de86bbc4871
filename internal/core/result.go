package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/billing"
	"github.com/joseph-ayodele/invoicebot/internal/categorize"
	"github.com/joseph-ayodele/invoicebot/internal/invoice"
)

// StageError reports the first stage that stopped the pipeline.
type StageError struct {
	Stage   constants.Stage `json:"stage"`
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Stage, e.Kind, e.Message)
}

// Result is everything one ProcessInvoice call produced. Earlier stage
// outputs are kept when a later stage fails.
type Result struct {
	RunID          uuid.UUID                     `json:"run_id"`
	Filename       string                        `json:"filename"`
	ExtractedData  *invoice.ExtractedInvoiceData `json:"extracted_data,omitempty"`
	Categorization *categorize.Result            `json:"categorization,omitempty"`
	BillReference  *billing.BillReference        `json:"bill_reference,omitempty"`
	Reconciliation *billing.Report               `json:"reconciliation,omitempty"`
	Warnings       []string                      `json:"warnings,omitempty"`
	Error          *StageError                   `json:"error,omitempty"`
}

// Status derives the run status from what the pipeline produced.
func (r Result) Status() constants.RunStatus {
	switch {
	case r.ExtractedData == nil:
		return constants.RunStatusFailed
	case r.Error != nil:
		return constants.RunStatusPartial
	default:
		return constants.RunStatusSucceeded
	}
}

// Summary is a one-line human readable outcome for chat or CLI output.
func (r Result) Summary() string {
	if r.ExtractedData == nil {
		if r.Error != nil {
			return fmt.Sprintf("Could not process %s: %s", r.Filename, r.Error.Message)
		}
		return fmt.Sprintf("Could not process %s", r.Filename)
	}

	d := r.ExtractedData
	parts := []string{
		"Vendor: " + d.VendorName,
		fmt.Sprintf("Amount: %.2f %s", d.TotalAmount, strings.TrimSpace(d.Currency)),
	}
	if c := r.Categorization; c != nil {
		switch c.Status {
		case constants.CategoryMatched:
			parts = append(parts, "Category: "+c.AssignedCategory)
		case constants.CategoryNotMatched:
			s := "Category: not matched"
			if c.SuggestedNewCategory != "" {
				s += " (suggested " + c.SuggestedNewCategory + ")"
			}
			parts = append(parts, s)
		default:
			parts = append(parts, "Category: error")
		}
	}
	if r.BillReference != nil {
		parts = append(parts, "Draft bill: "+r.BillReference.ID)
	}
	if r.Error != nil {
		parts = append(parts, fmt.Sprintf("Stopped at %s: %s", r.Error.Stage, r.Error.Message))
	}
	return fmt.Sprintf("Processed %s. %s", r.Filename, strings.Join(parts, ", "))
}
