// Package providers resolves configured provider names into llm.Provider
// handles once, at startup.
package providers

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoicebot/internal/common"
	"github.com/joseph-ayodele/invoicebot/internal/llm"
	"github.com/joseph-ayodele/invoicebot/internal/llm/mistral"
	"github.com/joseph-ayodele/invoicebot/internal/llm/openai"
)

// Kind is a supported provider name.
type Kind string

const (
	KindOpenAI  Kind = "openai"
	KindMistral Kind = "mistral"
)

// New builds the provider named by cfg.Provider. Unknown names are an error
// so misconfiguration fails before the server accepts work.
func New(cfg common.LLMConfig, logger *slog.Logger) (llm.Provider, error) {
	switch Kind(cfg.Provider) {
	case KindOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case KindMistral:
		return mistral.NewClient(mistral.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported llm provider %q", cfg.Provider), common.ErrInvalidInput)
	}
}
