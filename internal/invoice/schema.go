package invoice

import (
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoicebot/internal/llm"
)

// Field names, in the order the prompt lists them.
var fieldNames = []string{
	"vendor_name", "vendor_address", "invoice_number", "issue_date",
	"due_date", "currency", "total_amount", "line_items",
}

var lineItemFields = []string{"description", "quantity", "unit_price", "amount"}

var requiredFields = map[string]bool{"vendor_name": true, "total_amount": true, "line_items": true}

// JSONSchema returns the ExtractedInvoiceData schema as a generic map.
func JSONSchema() map[string]any {
	lineItem := llm.ObjectSchema(map[string]any{
		"description": llm.StringProp(),
		"quantity":    llm.NonNegativeNumberProp(),
		"unit_price":  llm.NonNegativeNumberProp(),
		"amount":      llm.NumberProp(),
	}, []string{})

	return llm.ObjectSchema(map[string]any{
		"vendor_name":    llm.RequiredStringProp(),
		"vendor_address": llm.StringProp(),
		"invoice_number": llm.StringProp(),
		"issue_date":     llm.StringProp(),
		"due_date":       llm.StringProp(),
		"currency":       llm.StringProp(),
		"total_amount":   llm.NumberProp(),
		"line_items":     llm.ArrayOf(lineItem),
	}, []string{"vendor_name", "total_amount", "line_items"})
}

var (
	compiledOnce sync.Once
	compiled     *jsonschema.Schema
	compileErr   error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiled, compileErr = llm.CompileSchema(JSONSchema())
	})
	return compiled, compileErr
}

// ValidateJSON checks raw bytes against the schema and the struct rules.
// It is safe to call on already-validated output; the result is unchanged.
func ValidateJSON(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	return llm.ValidateJSON(schema, data)
}
