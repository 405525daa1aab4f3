package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Failure classes HandleError sorts provider errors into. The original error
// stays in the chain.
var (
	ErrAuth            = errors.New("authentication failed")
	ErrRateLimited     = errors.New("rate limited")
	ErrContextTooLong  = errors.New("context too long")
	ErrModelNotFound   = errors.New("model not found")
	ErrConnection      = errors.New("connection error")
	ErrProviderFailure = errors.New("provider error")
)

// ErrModelUnavailable reports a provider that could not be reached or
// answered with something other than a model response.
type ErrModelUnavailable struct {
	Provider string
	Body     string
	Cause    error
}

func (e *ErrModelUnavailable) Error() string {
	msg := "model " + e.Provider + " unavailable"
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	if e.Body != "" {
		return msg + ": " + e.Body
	}
	return msg
}

func (e *ErrModelUnavailable) Unwrap() error { return e.Cause }

// HandleError tags err with the failure class it belongs to, so callers can
// test with errors.Is and users read the class first. Errors that match no
// class are returned unchanged.
func HandleError(err error) error {
	if err == nil {
		return nil
	}
	if class := classify(err); class != nil && !errors.Is(err, class) {
		return fmt.Errorf("%w: %w", class, err)
	}
	return err
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if class := byStatus(apiErr.StatusCode); class != nil {
			return class
		}
	}
	var unavailable *ErrModelUnavailable
	if errors.As(err, &unavailable) {
		return ErrConnection
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		for _, needle := range rule.needles {
			if strings.Contains(msg, needle) {
				return rule.class
			}
		}
	}
	return nil
}

func byStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusNotFound:
		return ErrModelNotFound
	case code == http.StatusRequestEntityTooLarge:
		return ErrContextTooLong
	case code >= 500:
		return ErrProviderFailure
	}
	return nil
}

// Order matters: "401" must win over a generic "not found" in the same text.
var messageRules = []struct {
	class   error
	needles []string
}{
	{ErrAuth, []string{"401", "403", "unauthorized", "invalid api key", "invalid x-api-key", "forbidden"}},
	{ErrRateLimited, []string{"429", "rate limit", "quota", "too many requests", "overloaded"}},
	{ErrContextTooLong, []string{"context length", "context window", "too many tokens", "prompt is too long", "token limit"}},
	{ErrModelNotFound, []string{"model not found", "404", "does not exist", "not found"}},
	{ErrConnection, []string{"connection refused", "connection reset", "no such host", "eof", "timeout", "dial tcp"}},
}
