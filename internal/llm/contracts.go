package llm

import (
	"context"
	"errors"
	"fmt"
)

// CompletionRequest is a single-prompt, single-choice chat completion.
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string  // empty means provider default
	Temperature float32 // callers keep this low for extraction work
	JSONMode    bool    // ask the provider for a json_object response when supported
}

// Provider is the narrow contract the pipeline needs from an LLM vendor.
// Implementations return *ProviderError for upstream failures.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ErrorKind distinguishes upstream failures so callers can report them.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindConnection ErrorKind = "connection"
	KindMalformed  ErrorKind = "malformed_response"
	KindAPI        ErrorKind = "api_error"
)

// ProviderError is returned by Provider implementations.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf returns the ErrorKind carried by err, or KindAPI when err is not a ProviderError.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindAPI
}

// KindForStatus classifies an HTTP status from a provider.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	default:
		return KindAPI
	}
}
