// Package mistral adapts Mistral's OpenAI-compatible chat API to llm.Provider.
package mistral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/invoicebot/internal/llm"
)

const (
	providerName   = "mistral"
	DefaultBaseURL = "https://api.mistral.ai/v1"
	DefaultModel   = "mistral-large-latest"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg Config
	api *goopenai.Client
	log *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{cfg: cfg, api: goopenai.NewClientWithConfig(apiCfg), log: logger}
}

func (c *Client) Name() string { return providerName }

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.cfg.Temperature
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt})

	ccReq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temp,
		N:           1,
	}
	if req.JSONMode {
		ccReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}

	c.log.Info("llm.mistral.request", "model", model, "prompt_len", len(req.Prompt), "temp", temp)
	resp, err := c.api.CreateChatCompletion(ctx, ccReq)
	if err != nil {
		pe := classify(err)
		c.log.Error("llm.mistral.error",
			"model", model, "kind", pe.Kind, "status", pe.StatusCode, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", pe
	}
	if len(resp.Choices) == 0 {
		return "", &llm.ProviderError{Provider: providerName, Kind: llm.KindMalformed, Err: fmt.Errorf("no choices in mistral response")}
	}

	content := resp.Choices[0].Message.Content
	c.log.Info("llm.mistral.ok",
		"model", model,
		"content_len", len(content),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// classify maps go-openai errors onto llm error kinds.
func classify(err error) *llm.ProviderError {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: providerName, Kind: llm.KindForStatus(apiErr.HTTPStatusCode), StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 {
			return &llm.ProviderError{Provider: providerName, Kind: llm.KindConnection, Err: err}
		}
		return &llm.ProviderError{Provider: providerName, Kind: llm.KindForStatus(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &llm.ProviderError{Provider: providerName, Kind: llm.KindConnection, Err: err}
}

var _ llm.Provider = (*Client)(nil)
