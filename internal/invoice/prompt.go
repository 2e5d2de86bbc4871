package invoice

import (
	"strings"
)

const exampleShape = `{
  "vendor_name": "Acme Cloud Ltd",
  "vendor_address": "1 Main St, Springfield",
  "invoice_number": "INV-1042",
  "issue_date": "2024-03-01",
  "due_date": "2024-03-31",
  "currency": "USD",
  "total_amount": 150.75,
  "line_items": [
    {"description": "Pro plan (March)", "quantity": 1, "unit_price": 150.75, "amount": 150.75}
  ]
}`

// BuildPrompt renders the extraction instruction with the invoice text in a
// delimited block.
func BuildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Extract the following information from the provided invoice text:\n")
	b.WriteString("- vendor_name (string, required): the company issuing the invoice.\n")
	b.WriteString("- vendor_address (string): the vendor's postal address.\n")
	b.WriteString("- invoice_number (string): the unique identifier for the invoice.\n")
	b.WriteString("- issue_date (string, YYYY-MM-DD): the main invoice date.\n")
	b.WriteString("- due_date (string, YYYY-MM-DD): the payment due date.\n")
	b.WriteString("- currency (string): 3-letter ISO 4217 code.\n")
	b.WriteString("- total_amount (number, required): the final amount due including tax.\n")
	b.WriteString("- line_items (array, required): each with description (string), quantity (number), unit_price (number), amount (number). Use [] if no items are listed.\n\n")
	b.WriteString("Format the output STRICTLY as a JSON object with exactly these keys: ")
	b.WriteString(strings.Join(fieldNames, ", "))
	b.WriteString(".\nIf a value cannot be determined use null. Numbers must be plain JSON numbers without currency symbols. Do not include explanations.\n\n")
	b.WriteString("Example shape:\n")
	b.WriteString(exampleShape)
	b.WriteString("\n\nInvoice Text:\n```\n")
	b.WriteString(text)
	b.WriteString("\n```\n\nJSON Output:\n")
	return b.String()
}
