// Package provider routes text generation across an ordered list of
// upstream LLM providers, guarded by per-provider circuit breakers.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the provider error taxonomy surfaced to the router and, via
// fallback metadata, to API clients.
type ErrorCode string

const (
	CodeRateLimit     ErrorCode = "rate_limit"
	CodeTimeout       ErrorCode = "timeout"
	CodeProviderError ErrorCode = "provider_error"
)

// Error is a classified provider failure.
type Error struct {
	Provider string
	Code     ErrorCode
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Code, e.Message)
}

// Malformed-response failures that must not be retried inside an adapter:
// the upstream answered, it just answered uselessly.
var (
	ErrNoChoices        = errors.New("no choices in provider response")
	ErrNoMessageContent = errors.New("no message content in provider response")
)

// Classify maps an arbitrary adapter failure onto the taxonomy. HTTP 429 is
// classified by the adapters before reaching here; message sniffing covers
// SDK-style errors that only carry text.
func Classify(providerName string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	code := CodeProviderError
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		code = CodeTimeout
	case strings.Contains(msg, "rate") || strings.Contains(msg, "quota"):
		code = CodeRateLimit
	}
	return &Error{Provider: providerName, Code: code, Message: err.Error()}
}
