package invoice

import (
	"strings"

	"github.com/joseph-ayodele/invoicebot/internal/llm"
)

var allowedTop = toSet(fieldNames)
var allowedLine = toSet(lineItemFields)

// Normalize makes a decoded model response schema-friendly: common key
// synonyms are renamed, numeric strings become numbers, null or blank
// optionals are dropped, and unknown keys are removed. Missing required
// fields are left missing so validation reports them.
func Normalize(m map[string]any) (map[string]any, []string) {
	s := llm.NewSanitizer(m).
		Rename("vendor", "vendor_name").
		Rename("invoice_id", "invoice_number").
		Rename("date", "issue_date").
		Rename("total", "total_amount").
		Rename("currency_code", "currency").
		Rename("items", "line_items").
		TrimOptionalStrings("vendor_address", "invoice_number", "issue_date", "due_date", "currency").
		CoerceNumbers(requiredFields, "total_amount").
		DropUnknown(allowedTop)

	out := s.Map()
	dropped := s.Dropped

	if v, ok := out["vendor_name"].(string); ok {
		out["vendor_name"] = strings.TrimSpace(v)
	}
	if c, ok := out["currency"].(string); ok {
		c = strings.ToUpper(c)
		if len(c) == 3 {
			out["currency"] = c
		} else {
			delete(out, "currency")
			dropped = append(dropped, "currency(not_iso)")
		}
	}

	switch items := out["line_items"].(type) {
	case nil:
		out["line_items"] = []any{}
	case []any:
		kept := make([]any, 0, len(items))
		for _, it := range items {
			li, ok := it.(map[string]any)
			if !ok {
				dropped = append(dropped, "line_items[](type)")
				continue
			}
			ls := llm.NewSanitizer(li).
				Rename("unit_amount", "unit_price").
				Rename("price", "unit_price").
				TrimOptionalStrings("description").
				CoerceNumbers(nil, "quantity", "unit_price", "amount").
				DropUnknown(allowedLine)
			dropped = append(dropped, prefixAll("line_items[].", ls.Dropped)...)
			for _, k := range []string{"quantity", "unit_price"} {
				if f, ok := li[k].(float64); ok && f < 0 {
					delete(li, k)
					dropped = append(dropped, "line_items[]."+k+"(negative)")
				}
			}
			kept = append(kept, li)
		}
		out["line_items"] = kept
	}
	return out, dropped
}

func toSet(keys []string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

func prefixAll(prefix string, in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = prefix + s
	}
	return out
}
