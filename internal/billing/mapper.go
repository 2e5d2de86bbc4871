package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/invoice"
)

// Tolerance is the largest line/total difference that is not a discrepancy.
var Tolerance = decimal.RequireFromString("0.01")

type Mapper struct {
	accounts AccountMap
	now      func() time.Time
	log      *slog.Logger
}

func NewMapper(accounts AccountMap, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{accounts: accounts, now: time.Now, log: logger}
}

// WithClock replaces the clock used for the missing issue date fallback.
func (m *Mapper) WithClock(now func() time.Time) *Mapper {
	m.now = now
	return m
}

// Build assembles a draft bill without a contact; callers address it with
// ForContact once the vendor contact is resolved. A *NoMappingError is
// returned together with a complete payload; any other error means no payload.
func (m *Mapper) Build(ctx context.Context, data invoice.ExtractedInvoiceData, category string) (BillPayload, Report, error) {
	rid := common.RequestIDFromContext(ctx)

	if strings.TrimSpace(data.VendorName) == "" {
		return BillPayload{}, Report{}, ErrMissingVendor
	}

	accountCode, mapErr := m.accounts.Lookup(category)
	if mapErr != nil {
		m.log.Warn("billing.account.unmapped", "req_id", rid, "category", category)
	}

	lines, fallback := buildLines(data, accountCode)
	report := reconcile(lines, data.TotalAmount)
	report.FallbackLine = fallback
	report.AccountCode = accountCode
	if report.Discrepancy {
		m.log.Warn("billing.reconcile.discrepancy",
			"req_id", rid,
			"extracted_total", report.AuthoritativeTotal.String(),
			"lines_total", report.LinesTotal.String(),
			"difference", report.Difference.String(),
		)
	}

	payload := BillPayload{
		Type:          BillTypeAccountsPayable,
		Date:          m.issueDate(rid, data.IssueDate),
		InvoiceNumber: strings.TrimSpace(data.InvoiceNumber),
		Reference:     Reference(data.InvoiceNumber),
		Currency:      data.Currency,
		Status:        BillStatusDraft,
		LineItems:     lines,
	}
	if due, ok := NormalizeDate(data.DueDate); ok {
		payload.DueDate = due
	} else if data.DueDate != "" {
		m.log.Warn("billing.date.unparseable", "req_id", rid, "field", "due_date", "value", data.DueDate)
	}

	m.log.Info("billing.build.ok",
		"req_id", rid,
		"lines", len(lines),
		"account_code", accountCode,
		"fallback_line", fallback,
	)
	return payload, report, mapErr
}

// IsNoMapping reports whether err only signals a missing account code.
func IsNoMapping(err error) bool {
	return errors.Is(err, ErrNoMapping)
}

// Reference is the bill reference text for an invoice number.
func Reference(invoiceNumber string) string {
	return "Invoice Upload: Inv " + orNA(invoiceNumber)
}

func (m *Mapper) issueDate(rid, raw string) string {
	if d, ok := NormalizeDate(raw); ok {
		return d
	}
	if raw != "" {
		m.log.Warn("billing.date.unparseable", "req_id", rid, "field", "issue_date", "value", raw)
	}
	return m.now().Format(time.DateOnly)
}

func buildLines(data invoice.ExtractedInvoiceData, accountCode string) ([]BillLine, bool) {
	if len(data.LineItems) == 0 {
		return []BillLine{{
			Description: fmt.Sprintf("Invoice %s from %s", orNA(data.InvoiceNumber), data.VendorName),
			Quantity:    decimal.NewFromInt(1),
			UnitAmount:  decimal.NewFromFloat(data.TotalAmount),
			AccountCode: accountCode,
		}}, true
	}

	lines := make([]BillLine, 0, len(data.LineItems))
	for _, it := range data.LineItems {
		amount := decimal.Zero
		if it.Amount != nil {
			amount = decimal.NewFromFloat(*it.Amount)
		}
		hasQty := it.Quantity != nil && *it.Quantity > 0

		var unit decimal.Decimal
		switch {
		case it.UnitPrice != nil:
			unit = decimal.NewFromFloat(*it.UnitPrice)
		case hasQty:
			unit = amount.Div(decimal.NewFromFloat(*it.Quantity))
		default:
			unit = amount
		}
		qty := decimal.NewFromInt(1)
		if hasQty {
			qty = decimal.NewFromFloat(*it.Quantity)
		}

		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			desc = "Item from " + data.VendorName
		}
		lines = append(lines, BillLine{
			Description: desc,
			Quantity:    qty,
			UnitAmount:  unit,
			AccountCode: accountCode,
		})
	}
	return lines, false
}

func reconcile(lines []BillLine, total float64) Report {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineAmount())
	}
	authoritative := decimal.NewFromFloat(total)
	diff := authoritative.Sub(sum)
	return Report{
		LinesTotal:         sum,
		AuthoritativeTotal: authoritative,
		Difference:         diff,
		Discrepancy:        diff.Abs().GreaterThan(Tolerance),
	}
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "N/A"
	}
	return s
}
