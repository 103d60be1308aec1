// Package provider abstracts language-model backends behind a uniform
// request/response contract and layers retry and cross-provider fallback on
// top of it.
//
// Invariants:
// - Transient failures are retried with exponential backoff, fatal ones never.
// - The chain tries providers strictly in configured order.
// - A pinned request never falls back to another provider.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role values used on wire messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in the transcript sent to a backend.
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolSpec describes a callable capability in function-calling format.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// Request is one logical completion request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int
	Temperature float64
}

// Usage tracks token consumption for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a backend completion: either a final answer, a set of tool
// calls, or both.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// HasToolCalls reports whether the model requested tool invocations.
func (r *Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Provider is the uniform contract over one language-model backend.
type Provider interface {
	// Name identifies the provider in the chain (e.g. "anthropic", "openai").
	Name() string

	// Complete sends one completion request.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ErrorKind classifies a provider failure for retry decisions.
type ErrorKind int

const (
	// Transient failures (timeouts, rate limits, 5xx) are retried.
	Transient ErrorKind = iota
	// Fatal failures (auth, malformed request) are never retried.
	Fatal
)

func (k ErrorKind) String() string {
	if k == Fatal {
		return "fatal"
	}
	return "transient"
}

// Error is a classified provider failure.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify wraps an SDK error with a retry classification. Rate limits,
// network resets and 5xx-class failures are transient; everything else
// (auth failures, malformed requests) is fatal.
func Classify(providerName string, err error) *Error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	kind := Fatal
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"):
		kind = Transient
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"),
		strings.Contains(msg, "503"), strings.Contains(msg, "504"),
		strings.Contains(msg, "overloaded"):
		kind = Transient
	case strings.Contains(msg, "econnreset"), strings.Contains(msg, "etimedout"),
		strings.Contains(msg, "connection refused"), strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		kind = Transient
	}

	return &Error{Kind: kind, Provider: providerName, Err: err}
}

// IsTransient reports whether the error is worth retrying.
func IsTransient(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind == Transient
	}
	return false
}
