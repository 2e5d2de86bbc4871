package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoicebot/internal/billing"
	"github.com/joseph-ayodele/invoicebot/internal/common"
)

type XeroConfig struct {
	BaseURL  string
	TenantID string
	Timeout  time.Duration
}

// XeroClient implements Client against the Xero accounting API.
type XeroClient struct {
	cfg        XeroConfig
	tokens     TokenStore
	httpClient *http.Client
	log        *slog.Logger
}

func NewXeroClient(cfg XeroConfig, tokens TokenStore, logger *slog.Logger) *XeroClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.xero.com/api.xro/2.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &XeroClient{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

type xeroContact struct {
	ContactID string `json:"ContactID,omitempty"`
	Name      string `json:"Name,omitempty"`
}

type xeroContacts struct {
	Contacts []xeroContact `json:"Contacts"`
}

type xeroLineItem struct {
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	AccountCode string  `json:"AccountCode,omitempty"`
}

type xeroValidationError struct {
	Message string `json:"Message"`
}

type xeroInvoice struct {
	InvoiceID        string                `json:"InvoiceID,omitempty"`
	Type             string                `json:"Type,omitempty"`
	Contact          *xeroContact          `json:"Contact,omitempty"`
	DateString       string                `json:"DateString,omitempty"`
	DueDateString    string                `json:"DueDateString,omitempty"`
	InvoiceNumber    string                `json:"InvoiceNumber,omitempty"`
	Reference        string                `json:"Reference,omitempty"`
	CurrencyCode     string                `json:"CurrencyCode,omitempty"`
	Status           string                `json:"Status,omitempty"`
	LineItems        []xeroLineItem        `json:"LineItems,omitempty"`
	HasErrors        bool                  `json:"HasErrors,omitempty"`
	ValidationErrors []xeroValidationError `json:"ValidationErrors,omitempty"`
}

type xeroInvoices struct {
	Invoices []xeroInvoice `json:"Invoices"`
}

func (c *XeroClient) FindContact(ctx context.Context, name string) (string, bool, error) {
	q := url.Values{}
	q.Set("where", fmt.Sprintf(`Name=="%s"`, strings.ReplaceAll(name, `"`, `\"`)))

	var out xeroContacts
	status, err := c.do(ctx, "find_contact", http.MethodGet, "/Contacts", q, nil, &out)
	if status == http.StatusNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	for _, ct := range out.Contacts {
		if ct.ContactID != "" {
			return ct.ContactID, true, nil
		}
	}
	return "", false, nil
}

func (c *XeroClient) CreateContact(ctx context.Context, name string) (string, error) {
	var out xeroContacts
	body := xeroContacts{Contacts: []xeroContact{{Name: name}}}
	if _, err := c.do(ctx, "create_contact", http.MethodPost, "/Contacts", nil, body, &out); err != nil {
		return "", err
	}
	if len(out.Contacts) == 0 || out.Contacts[0].ContactID == "" {
		return "", &APIError{Op: "create_contact", Message: "response carried no contact id"}
	}
	c.log.Info("accounting.contact.created", "name", name, "contact_id", out.Contacts[0].ContactID)
	return out.Contacts[0].ContactID, nil
}

func (c *XeroClient) CreateDraftBill(ctx context.Context, bill billing.BillPayload) (billing.BillReference, error) {
	inv := xeroInvoice{
		Type:          bill.Type,
		Contact:       &xeroContact{ContactID: bill.ContactID},
		DateString:    bill.Date,
		DueDateString: bill.DueDate,
		InvoiceNumber: bill.InvoiceNumber,
		Reference:     bill.Reference,
		CurrencyCode:  bill.Currency,
		Status:        bill.Status,
	}
	for _, l := range bill.LineItems {
		inv.LineItems = append(inv.LineItems, xeroLineItem{
			Description: l.Description,
			Quantity:    l.Quantity.InexactFloat64(),
			UnitAmount:  l.UnitAmount.InexactFloat64(),
			AccountCode: l.AccountCode,
		})
	}

	var out xeroInvoices
	if _, err := c.do(ctx, "create_bill", http.MethodPost, "/Invoices", nil, xeroInvoices{Invoices: []xeroInvoice{inv}}, &out); err != nil {
		return billing.BillReference{}, err
	}
	if len(out.Invoices) == 0 {
		return billing.BillReference{}, &APIError{Op: "create_bill", Message: "response carried no invoice"}
	}
	created := out.Invoices[0]
	if created.HasErrors || created.InvoiceID == "" {
		msgs := make([]string, 0, len(created.ValidationErrors))
		for _, v := range created.ValidationErrors {
			msgs = append(msgs, v.Message)
		}
		return billing.BillReference{}, &APIError{Op: "create_bill", Message: "validation errors: " + strings.Join(msgs, "; ")}
	}
	return billing.BillReference{ID: created.InvoiceID, Number: created.InvoiceNumber, Status: created.Status}, nil
}

// do sends one request and decodes the JSON answer into out. A 401 triggers
// a single token refresh and retry.
func (c *XeroClient) do(ctx context.Context, op, method, path string, query url.Values, body, out any) (int, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal %s request: %w", op, err)
		}
		payload = b
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, &APIError{Op: op, StatusCode: http.StatusUnauthorized, Message: err.Error()}
	}

	status, respBody, err := c.send(ctx, method, path, query, payload, token)
	if status == http.StatusUnauthorized {
		c.log.Warn("accounting.unauthorized", "req_id", common.RequestIDFromContext(ctx), "op", op)
		refreshed, rerr := c.tokens.Refresh(ctx)
		if rerr != nil {
			if errors.Is(rerr, ErrRefreshUnsupported) {
				return status, &APIError{Op: op, StatusCode: status, Message: "unauthorized and no refresh token available"}
			}
			return status, &APIError{Op: op, StatusCode: status, Message: rerr.Error()}
		}
		status, respBody, err = c.send(ctx, method, path, query, payload, refreshed)
	}
	if err != nil {
		return status, &APIError{Op: op, Message: err.Error()}
	}
	if status < 200 || status >= 300 {
		return status, &APIError{Op: op, StatusCode: status, Message: snippet(respBody)}
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return status, &APIError{Op: op, StatusCode: status, Message: "decode response: " + err.Error()}
		}
	}
	return status, nil
}

func (c *XeroClient) send(ctx context.Context, method, path string, query url.Values, payload []byte, token string) (int, []byte, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Xero-tenant-id", c.cfg.TenantID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	c.log.Debug("accounting.http.response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp.StatusCode, b, err
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		return s[:300] + "...(truncated)"
	}
	return s
}
