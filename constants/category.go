package constants

import (
	"strings"
)

// DefaultCategories is the allow-list used when ALLOWED_CATEGORIES is not configured.
var DefaultCategories = []string{
	"Software & Subscriptions",
	"Office Supplies",
	"Travel",
	"Marketing & Advertising",
	"Meals & Entertainment",
	"Utilities",
	"Professional Services",
}

// DefaultCompanyContext is used in prompts when COMPANY_CONTEXT is not set.
const DefaultCompanyContext = "A small software studio. Key expense areas include software subscriptions, cloud services, and performance marketing."

// CategoryStatus is the closed outcome of a categorization call.
type CategoryStatus string

const (
	CategoryMatched    CategoryStatus = "matched"
	CategoryNotMatched CategoryStatus = "not_matched"
	CategoryError      CategoryStatus = "error"
)

var allCategoryStatuses = []CategoryStatus{
	CategoryMatched,
	CategoryNotMatched,
	CategoryError,
}

// CategoryStatusStrings returns the status enum for JSON schemas.
func CategoryStatusStrings() []string {
	result := make([]string, len(allCategoryStatuses))
	for i, s := range allCategoryStatuses {
		result[i] = string(s)
	}
	return result
}

// ParseCategoryStatus accepts any casing and surrounding whitespace.
func ParseCategoryStatus(input string) (CategoryStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, s := range allCategoryStatuses {
		if normalized == string(s) {
			return s, true
		}
	}
	return "", false
}

// Contains reports whether category is an exact member of allowed.
func Contains(allowed []string, category string) bool {
	for _, c := range allowed {
		if c == category {
			return true
		}
	}
	return false
}
