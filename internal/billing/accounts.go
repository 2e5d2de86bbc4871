package billing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoMapping      = errors.New("no account code mapped for category")
	ErrMissingVendor  = errors.New("vendor name is missing")
	ErrMissingContact = errors.New("contact reference is missing")
)

// NoMappingError is returned alongside a usable payload; the lines simply
// carry no account code.
type NoMappingError struct {
	Category string
}

func (e *NoMappingError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNoMapping.Error(), e.Category)
}

func (e *NoMappingError) Is(target error) bool { return target == ErrNoMapping }

// AccountMap maps category names to ledger account codes.
type AccountMap map[string]string

func (m AccountMap) Lookup(category string) (string, error) {
	code := strings.TrimSpace(m[category])
	if code == "" {
		return "", &NoMappingError{Category: category}
	}
	return code, nil
}
