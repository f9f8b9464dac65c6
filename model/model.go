// Package model defines the provider-neutral interface to language models:
// a normalized request/response pair, tool declarations, and an error type
// that distinguishes transient from fatal provider failures so the engine can
// decide whether a retry is worthwhile.
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/meshbot/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a JSON Schema object (minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the context builder.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt
	Messages     []core.Message   `json:"messages"`     // Conversation history, oldest first
	Tools        []ToolDefinition `json:"tools,omitempty"`
	MaxTokens    int64            `json:"max_tokens,omitempty"`
	Temperature  float64          `json:"temperature,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed model turn: either plain text or one or more tool
// call requests (possibly with accompanying text).
type Response struct {
	Content      string          `json:"content"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	FinishReason string          `json:"finish_reason"` // "stop", "length", "tool_calls", ...
	Usage        *TokenUsage     `json:"usage,omitempty"`
}

// HasToolCalls reports whether the model requested any tool executions.
func (r *Response) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface the engine requires to drive generation.
// Complete must honor ctx cancellation and deadlines; every call the engine
// makes carries a bounded timeout.
type Model interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrorKind classifies provider failures. Transient kinds are retried by the
// engine with backoff; fatal kinds surface immediately.
type ErrorKind int

const (
	// ErrorKindNetwork covers connectivity problems, timeouts and 5xx responses.
	ErrorKindNetwork ErrorKind = iota
	// ErrorKindRateLimit covers 429 responses.
	ErrorKindRateLimit
	// ErrorKindAuth covers 401/403 responses.
	ErrorKindAuth
	// ErrorKindMalformed covers responses the adapter could not interpret.
	ErrorKindMalformed
)

// String returns a stable label for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNetwork:
		return "network"
	case ErrorKindRateLimit:
		return "rate_limit"
	case ErrorKindAuth:
		return "auth"
	case ErrorKindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Transient reports whether a retry may succeed.
func (k ErrorKind) Transient() bool {
	return k == ErrorKindNetwork || k == ErrorKindRateLimit
}

// ProviderError wraps a failed model call with its classification.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with provider name and classification.
func NewProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// IsTransient reports whether err is a provider error worth retrying.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind.Transient()
	}
	// Unknown failures (including context deadline) are treated as transient
	// so a flaky call gets its bounded retries.
	return true
}
