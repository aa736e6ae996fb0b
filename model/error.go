package model

import "fmt"

// ErrorKind classifies a provider failure for retry and error-reporting
// purposes, independent of any single SDK's error type. Grounded on the
// teacher's runtime/agent/model.ProviderError.
type ErrorKind string

const (
	ErrorKindAuth           ErrorKind = "auth"
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindRateLimited    ErrorKind = "rate_limited"
	ErrorKindUnavailable    ErrorKind = "unavailable"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// ProviderError wraps a provider SDK error with a normalized kind so
// RetryingClient can decide whether to retry without depending on any
// specific SDK's error types.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Retryable reports whether the call that produced this error is safe to
// retry. RateLimited and Unavailable are transient; Auth and InvalidRequest
// are not since retrying without changing the request would only repeat the
// failure.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case ErrorKindRateLimited, ErrorKindUnavailable:
		return true
	default:
		return false
	}
}

// NewProviderError constructs a ProviderError for the given provider.
func NewProviderError(provider string, kind ErrorKind, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Cause: cause}
}
