// Package accounting talks to the external ledger that receives draft bills.
package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/invoicebot/internal/billing"
)

// Client is the accounting collaborator used by the pipeline.
type Client interface {
	FindContact(ctx context.Context, name string) (id string, found bool, err error)
	CreateContact(ctx context.Context, name string) (string, error)
	CreateDraftBill(ctx context.Context, bill billing.BillPayload) (billing.BillReference, error)
}

var ErrUnauthorized = errors.New("accounting api rejected credentials")

// APIError is a non-2xx answer or an unusable response body.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("accounting %s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("accounting %s failed: %s", e.Op, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == 401
}

// ResolveContact finds a contact by exact name and creates it when missing.
func ResolveContact(ctx context.Context, c Client, name string) (id string, created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, billing.ErrMissingVendor
	}
	id, found, err := c.FindContact(ctx, name)
	if err != nil {
		return "", false, err
	}
	if found {
		return id, false, nil
	}
	id, err = c.CreateContact(ctx, name)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}
