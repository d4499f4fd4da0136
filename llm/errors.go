// ABOUTME: Error types for the LLM client: provider errors classified by kind, network and config errors.
// ABOUTME: Retryability is derived from the error kind so retry logic needs no type switch.

package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindAccessDenied   ErrorKind = "access_denied"
	KindNotFound       ErrorKind = "not_found"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindContextLength  ErrorKind = "context_length"
	KindRateLimit      ErrorKind = "rate_limit"
	KindQuotaExceeded  ErrorKind = "quota_exceeded"
	KindContentFilter  ErrorKind = "content_filter"
	KindTimeout        ErrorKind = "timeout"
	KindServer         ErrorKind = "server"
	KindUnknown        ErrorKind = "unknown"
)

var retryableKinds = map[ErrorKind]bool{
	KindRateLimit: true,
	KindTimeout:   true,
	KindServer:    true,
	KindUnknown:   true,
}

// ProviderError is an error reported by an LLM provider's API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Kind       ErrorKind
	Code       string
	Message    string
	RetryAfter time.Duration // zero when the provider gave no hint
	Raw        json.RawMessage
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: HTTP %d %s (%s): %s", e.Provider, e.StatusCode, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d %s: %s", e.Provider, e.StatusCode, e.Kind, e.Message)
}

// IsRetryable reports whether the failure is likely transient.
func (e *ProviderError) IsRetryable() bool {
	return retryableKinds[e.Kind]
}

// NetworkError is a transport-level failure (DNS, refused connection, reset). Retryable.
type NetworkError struct {
	Provider string
	Cause    error
}

func (e *NetworkError) Error() string     { return fmt.Sprintf("%s: network error: %v", e.Provider, e.Cause) }
func (e *NetworkError) Unwrap() error     { return e.Cause }
func (e *NetworkError) IsRetryable() bool { return true }

// ConfigurationError is a client setup problem such as a missing API key or unknown provider.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string     { return e.Message }
func (e *ConfigurationError) IsRetryable() bool { return false }

// IsRetryable reports whether err, or an error it wraps, is marked retryable.
func IsRetryable(err error) bool {
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// KindForStatus maps an HTTP status code to an ErrorKind.
func KindForStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == 400 || statusCode == 422:
		return KindInvalidRequest
	case statusCode == 401:
		return KindAuthentication
	case statusCode == 403:
		return KindAccessDenied
	case statusCode == 404:
		return KindNotFound
	case statusCode == 408:
		return KindTimeout
	case statusCode == 413:
		return KindContextLength
	case statusCode == 429:
		return KindRateLimit
	case statusCode >= 500 && statusCode <= 599:
		return KindServer
	default:
		return KindUnknown
	}
}

// ErrorFromStatusCode builds a ProviderError for a non-2xx response.
func ErrorFromStatusCode(statusCode int, message, provider, code string, raw json.RawMessage, retryAfter time.Duration) *ProviderError {
	kind := KindForStatus(statusCode)
	if kind == KindRateLimit && code == "insufficient_quota" {
		kind = KindQuotaExceeded
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: statusCode,
		Kind:       kind,
		Code:       code,
		Message:    message,
		RetryAfter: retryAfter,
		Raw:        raw,
	}
}
