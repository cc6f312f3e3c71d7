// Package domain defines the completion-provider contract consumed by the
// generation engine.
package domain

import (
	"context"
	"errors"
	"fmt"
)

// CompletionRequest is one prompt sent to a generative model.
type CompletionRequest struct {
	ModelID      string
	SystemPrompt string
	Prompt       string
	MaxTokens    int
	Temperature  float64
}

// CompletionResponse carries the raw model output and token accounting.
type CompletionResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// CompletionProvider is the opaque generative capability. Implementations
// must return *Error so callers can branch on Kind instead of message text.
type CompletionProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// ErrorKind classifies provider failures for retry decisions.
type ErrorKind string

const (
	// ErrKindRateLimited means the provider throttled the call; further
	// attempts in the same loop would waste spend.
	ErrKindRateLimited ErrorKind = "rate_limited"
	// ErrKindQuotaExhausted means the account quota is spent.
	ErrKindQuotaExhausted ErrorKind = "quota_exhausted"
	// ErrKindTransient covers timeouts and 5xx-class failures worth retrying.
	ErrKindTransient ErrorKind = "transient"
	// ErrKindInvalidRequest means the request itself was rejected.
	ErrKindInvalidRequest ErrorKind = "invalid_request"
)

// Error is the structured provider failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("provider %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a classified provider error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the error kind, defaulting to transient for unclassified
// failures so the queue keeps retrying them.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ErrKindTransient
}

// IsExhausted reports whether err indicates rate-limit or quota exhaustion.
func IsExhausted(err error) bool {
	kind := KindOf(err)
	return kind == ErrKindRateLimited || kind == ErrKindQuotaExhausted
}

var ErrProviderNotFound = errors.New("provider_not_found")
