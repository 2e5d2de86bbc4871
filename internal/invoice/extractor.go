package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/llm"
)

// ErrorKind tells callers why extraction failed.
type ErrorKind string

const (
	KindEmptyText        ErrorKind = "empty_text"
	KindProvider         ErrorKind = "provider"
	KindEmptyResponse    ErrorKind = "empty_response"
	KindInvalidJSON      ErrorKind = "invalid_json"
	KindSchemaValidation ErrorKind = "schema_validation"
)

// ExtractionError is the only error type Extract returns.
type ExtractionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("invoice extraction failed (%s): %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ErrEmptyText is returned without calling the provider.
var ErrEmptyText = errors.New("no document text to extract from")

type Config struct {
	Temperature float32
	Model       string
}

// Extractor is the field extraction engine.
type Extractor struct {
	provider llm.Provider
	cfg      Config
	log      *slog.Logger
}

// NewExtractor uses cfg as given. Defaults such as the sampling
// temperature come from configuration loading.
func NewExtractor(provider llm.Provider, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{provider: provider, cfg: cfg, log: logger}
}

// Extract returns a fully validated record or an *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, text, filename string) (ExtractedInvoiceData, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		e.log.Warn("invoice.extract.empty_text", "req_id", rid, "filename", filename)
		return ExtractedInvoiceData{}, &ExtractionError{Kind: KindEmptyText, Err: ErrEmptyText}
	}

	e.log.Info("invoice.extract.start",
		"req_id", rid,
		"filename", filename,
		"provider", e.provider.Name(),
		"text_len", len(text),
	)

	content, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      BuildPrompt(text),
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		e.log.Error("invoice.extract.provider_error",
			"req_id", rid, "filename", filename, "kind", llm.KindOf(err), "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return ExtractedInvoiceData{}, &ExtractionError{Kind: KindProvider, Err: err}
	}

	cleaned, decoded, err := llm.ParseJSONObject(content)
	if err != nil {
		kind := KindInvalidJSON
		if errors.Is(err, llm.ErrEmptyResponse) {
			kind = KindEmptyResponse
		}
		e.log.Error("invoice.extract.parse_failed",
			"req_id", rid, "filename", filename, "kind", kind, "error", err,
			"snippet", llm.Snippet(string(cleaned), 200),
		)
		return ExtractedInvoiceData{}, &ExtractionError{Kind: kind, Err: err}
	}

	normalized, dropped := Normalize(decoded)
	if len(dropped) > 0 {
		e.log.Info("invoice.extract.normalize_sanitize", "req_id", rid, "dropped", dropped)
	}

	data, err := Decode(normalized)
	if err != nil {
		e.log.Error("invoice.extract.schema_validation_failed",
			"req_id", rid, "filename", filename, "error", err,
			"content", llm.Snippet(string(cleaned), 500),
		)
		return ExtractedInvoiceData{}, &ExtractionError{Kind: KindSchemaValidation, Err: err}
	}

	e.log.Info("invoice.extract.ok",
		"req_id", rid,
		"vendor", data.VendorName,
		"invoice_number", data.InvoiceNumber,
		"total", data.TotalAmount,
		"line_items", len(data.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

// Decode validates a normalized map against the schema and struct rules
// and decodes it.
func Decode(m map[string]any) (ExtractedInvoiceData, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return ExtractedInvoiceData{}, fmt.Errorf("encode normalized: %w", err)
	}
	if err := ValidateJSON(b); err != nil {
		return ExtractedInvoiceData{}, err
	}
	var out ExtractedInvoiceData
	if err := json.Unmarshal(b, &out); err != nil {
		return ExtractedInvoiceData{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	if out.LineItems == nil {
		out.LineItems = []LineItem{}
	}
	if err := out.Validate(); err != nil {
		return ExtractedInvoiceData{}, err
	}
	return out, nil
}
