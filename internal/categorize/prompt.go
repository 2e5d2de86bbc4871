package categorize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoicebot/internal/invoice"
)

const responseShape = `{
  "status": "matched | not_matched | error",
  "assigned_category": "<exactly one allowed category, or null unless matched>",
  "suggested_new_category": "<optional suggestion when not_matched, otherwise null>",
  "notes": "<brief explanation or error details>"
}`

// BuildPrompt renders the categorization instruction for one invoice.
func BuildPrompt(companyContext string, allowed []string, data invoice.ExtractedInvoiceData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an accounts payable assistant for '%s'.\n", companyContext)
	b.WriteString("Categorize the invoice below using ONLY the allowed expense categories.\n\n")

	b.WriteString("Allowed Expense Categories:\n")
	b.WriteString(strings.Join(allowed, ", "))
	b.WriteString("\n\nInvoice Data:\n")
	fmt.Fprintf(&b, "Vendor: %s\n", data.VendorName)
	fmt.Fprintf(&b, "Invoice Number: %s\n", orNA(data.InvoiceNumber))
	fmt.Fprintf(&b, "Issue Date: %s\n", orNA(data.IssueDate))
	fmt.Fprintf(&b, "Total Amount: %s\n", formatAmount(data.TotalAmount))
	b.WriteString("Line Items:\n")
	b.WriteString(lineSummary(data.LineItems))

	b.WriteString("\nRespond ONLY with a JSON object of this shape:\n")
	b.WriteString(responseShape)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- If the invoice clearly matches an allowed category, set status to 'matched' and assigned_category to the EXACT category name.\n")
	b.WriteString("- Otherwise set status to 'not_matched' and assigned_category to null. You may suggest a new category.\n")
	b.WriteString("- If you cannot process the request, set status to 'error' and explain in notes.\n")
	b.WriteString("- Do NOT include any text outside the JSON object.\n")
	return b.String()
}

// lineSummary lists description and amount per item, skipping items that
// have neither.
func lineSummary(items []invoice.LineItem) string {
	var b strings.Builder
	for _, it := range items {
		desc := strings.TrimSpace(it.Description)
		switch {
		case desc != "" && it.Amount != nil:
			fmt.Fprintf(&b, "  - %s: %s\n", desc, formatAmount(*it.Amount))
		case desc != "":
			fmt.Fprintf(&b, "  - %s\n", desc)
		case it.Amount != nil:
			fmt.Fprintf(&b, "  - (no description): %s\n", formatAmount(*it.Amount))
		}
	}
	if b.Len() == 0 {
		return "  (No line items extracted)\n"
	}
	return b.String()
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
