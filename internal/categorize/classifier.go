package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoicebot/constants"
	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/invoice"
	"github.com/joseph-ayodele/invoicebot/internal/llm"
)

type Config struct {
	Allowed        []string
	CompanyContext string
	Model          string
	Temperature    float32
}

// Classifier is safe for concurrent use; it holds only read-only config.
type Classifier struct {
	provider llm.Provider
	cfg      Config
	log      *slog.Logger
}

// NewClassifier accepts a nil provider; Categorize then reports an error result.
// Temperature is passed through as given, so zero means greedy sampling.
func NewClassifier(provider llm.Provider, cfg Config, logger *slog.Logger) *Classifier {
	if len(cfg.Allowed) == 0 {
		cfg.Allowed = constants.DefaultCategories
	}
	if cfg.CompanyContext == "" {
		cfg.CompanyContext = constants.DefaultCompanyContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{provider: provider, cfg: cfg, log: logger}
}

// Allowed returns the vocabulary the classifier enforces.
func (c *Classifier) Allowed() []string { return c.cfg.Allowed }

// Categorize never fails; problems come back as a Result with status error.
func (c *Classifier) Categorize(ctx context.Context, data invoice.ExtractedInvoiceData) Result {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	if c.provider == nil {
		c.log.Error("categorize.provider_missing", "req_id", rid)
		return errorResult("Categorization provider not configured.")
	}

	c.log.Info("categorize.start",
		"req_id", rid,
		"filename", common.FilenameFromContext(ctx),
		"vendor", data.VendorName,
		"provider", c.provider.Name(),
	)

	content, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      BuildPrompt(c.cfg.CompanyContext, c.cfg.Allowed, data),
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		c.log.Error("categorize.provider_error", "req_id", rid, "kind", llm.KindOf(err), "error", err)
		return providerErrorResult(err)
	}

	res, err := decode(content)
	if err != nil {
		c.log.Error("categorize.parse_failed", "req_id", rid, "error", err, "snippet", llm.Snippet(content, 200))
		switch {
		case errors.Is(err, llm.ErrEmptyResponse):
			return errorResult("LLM returned empty response.")
		case errors.Is(err, llm.ErrInvalidJSON):
			return errorResult("LLM response was not valid JSON: %s...", llm.Snippet(llm.CleanResponse(content), 100))
		default:
			return errorResult("LLM response structure invalid: %v", err)
		}
	}

	enforced := Enforce(res, c.cfg.Allowed)
	if enforced.Status != res.Status {
		c.log.Warn("categorize.downgraded", "req_id", rid, "suggested", res.AssignedCategory)
	}
	c.log.Info("categorize.ok",
		"req_id", rid,
		"status", enforced.Status,
		"category", enforced.AssignedCategory,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return enforced
}

func providerErrorResult(err error) Result {
	switch llm.KindOf(err) {
	case llm.KindRateLimit:
		return errorResult("LLM rate limit error: %v", err)
	case llm.KindAuth:
		return errorResult("LLM authentication error: %v", err)
	case llm.KindConnection:
		return errorResult("LLM connection error: %v", err)
	default:
		return errorResult("LLM API error: %v", err)
	}
}

// decode parses, normalizes and schema-validates a model response.
func decode(content string) (Result, error) {
	_, m, err := llm.ParseJSONObject(content)
	if err != nil {
		return Result{}, err
	}

	s := llm.NewSanitizer(m).
		Rename("category", "assigned_category").
		TrimOptionalStrings("assigned_category", "suggested_new_category", "notes").
		DropUnknown(map[string]struct{}{
			"status": {}, "assigned_category": {}, "suggested_new_category": {}, "notes": {},
		})
	m = s.Map()
	if raw, ok := m["status"].(string); ok {
		if st, ok := constants.ParseCategoryStatus(raw); ok {
			m["status"] = string(st)
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return Result{}, err
	}
	if err := ValidateJSON(b); err != nil {
		return Result{}, err
	}
	var res Result
	if err := json.Unmarshal(b, &res); err != nil {
		return Result{}, err
	}
	res.Notes = strings.TrimSpace(res.Notes)
	return res, nil
}
