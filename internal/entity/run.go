package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoicebot/constants"
)

// InvoiceRun is one processed document as stored in invoice_runs.
type InvoiceRun struct {
	ID               uuid.UUID           `json:"id"`
	Filename         string              `json:"filename"`
	SHA256           string              `json:"sha256"`
	Status           constants.RunStatus `json:"status"`
	VendorName       *string             `json:"vendor_name,omitempty"`
	InvoiceNumber    *string             `json:"invoice_number,omitempty"`
	TotalAmount      *decimal.Decimal    `json:"total_amount,omitempty"`
	Currency         *string             `json:"currency,omitempty"`
	CategoryStatus   *string             `json:"category_status,omitempty"`
	AssignedCategory *string             `json:"assigned_category,omitempty"`
	BillID           *string             `json:"bill_id,omitempty"`
	ErrorStage       *string             `json:"error_stage,omitempty"`
	ErrorMessage     *string             `json:"error_message,omitempty"`
	ExtractedJSON    json.RawMessage     `json:"extracted_json,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	FinishedAt       *time.Time          `json:"finished_at,omitempty"`
}
