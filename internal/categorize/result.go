// Package categorize assigns an expense category to an extracted invoice
// and enforces the configured allow-list on whatever the model answers.
package categorize

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/llm"
)

// Result is the outcome of one categorization. AssignedCategory is only set
// when Status is matched, and then it is a member of the allow-list.
type Result struct {
	Status               constants.CategoryStatus `json:"status"`
	AssignedCategory     string                   `json:"assigned_category,omitempty"`
	SuggestedNewCategory string                   `json:"suggested_new_category,omitempty"`
	Notes                string                   `json:"notes,omitempty"`
}

// Matched reports whether the result carries a usable category.
func (r Result) Matched() bool {
	return r.Status == constants.CategoryMatched && r.AssignedCategory != ""
}

func errorResult(format string, args ...any) Result {
	return Result{Status: constants.CategoryError, Notes: fmt.Sprintf(format, args...)}
}

// errorNotes replaces blank notes on a model-reported error so the failure
// always carries a message downstream.
const errorNotes = "LLM reported an error without details."

// Enforce downgrades a matched result whose category is not in allowed and
// clears a category reported alongside any other status.
func Enforce(r Result, allowed []string) Result {
	switch r.Status {
	case constants.CategoryError:
		r.AssignedCategory = ""
		if strings.TrimSpace(r.Notes) == "" {
			r.Notes = errorNotes
		}
	case constants.CategoryMatched:
		if r.AssignedCategory == "" || !constants.Contains(allowed, r.AssignedCategory) {
			return Result{
				Status:               constants.CategoryNotMatched,
				SuggestedNewCategory: r.SuggestedNewCategory,
				Notes:                fmt.Sprintf("LLM suggested invalid category '%s'. Original Notes: %s", r.AssignedCategory, r.Notes),
			}
		}
	default:
		r.AssignedCategory = ""
	}
	return r
}

// JSONSchema returns the response schema with a closed status enum.
func JSONSchema() map[string]any {
	return llm.ObjectSchema(map[string]any{
		"status":                 llm.EnumProp(constants.CategoryStatusStrings()),
		"assigned_category":      llm.NullableStringProp(),
		"suggested_new_category": llm.NullableStringProp(),
		"notes":                  llm.NullableStringProp(),
	}, []string{"status"})
}

var (
	compiledOnce sync.Once
	compiled     *jsonschema.Schema
	compileErr   error
)

// ValidateJSON checks a response document against JSONSchema.
func ValidateJSON(data []byte) error {
	compiledOnce.Do(func() {
		compiled, compileErr = llm.CompileSchema(JSONSchema())
	})
	if compileErr != nil {
		return compileErr
	}
	return llm.ValidateJSON(compiled, data)
}
