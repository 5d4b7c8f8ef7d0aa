package models

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Sentinel errors for common provider failures.
var (
	// Configuration errors
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrUnknownProvider = errors.New("unknown provider type")

	// Context/Token errors
	ErrContextLengthExceeded = errors.New("context length exceeded")

	// Safety/Content errors
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// Rate limiting errors
	ErrRateLimit = errors.New("rate limit exceeded")

	// Authentication errors
	ErrAuthentication   = errors.New("authentication failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrProxyAuth        = errors.New("proxy authentication required")

	// Network errors
	ErrNetwork            = errors.New("network error")
	ErrDNS                = errors.New("dns lookup failed")
	ErrConnectionRefused  = errors.New("connection refused")
	ErrTimeout            = errors.New("request timeout")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Feature errors
	ErrToolCallingNotSupported = errors.New("tool calling not supported")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrEmptyResponse  = errors.New("empty response")
)

// ErrorCode represents a provider error code.
type ErrorCode string

const (
	ErrorCodeContextLength     ErrorCode = "context_length_exceeded"
	ErrorCodeContentBlocked    ErrorCode = "content_blocked"
	ErrorCodeRateLimit         ErrorCode = "rate_limit"
	ErrorCodeAuth              ErrorCode = "authentication_failed"
	ErrorCodePermission        ErrorCode = "permission_denied"
	ErrorCodeProxyAuth         ErrorCode = "proxy_authentication_required"
	ErrorCodeNetwork           ErrorCode = "network_error"
	ErrorCodeDNS               ErrorCode = "dns_failure"
	ErrorCodeConnectionRefused ErrorCode = "connection_refused"
	ErrorCodeTimeout           ErrorCode = "timeout"
	ErrorCodeUnavailable       ErrorCode = "service_unavailable"
	ErrorCodeTooling           ErrorCode = "tool_calling_not_supported"
	ErrorCodeInvalidRequest    ErrorCode = "invalid_request"
	ErrorCodeEmptyResponse     ErrorCode = "empty_response"
)

var sentinels = map[ErrorCode]error{
	ErrorCodeContextLength:     ErrContextLengthExceeded,
	ErrorCodeContentBlocked:    ErrContentBlocked,
	ErrorCodeRateLimit:         ErrRateLimit,
	ErrorCodeAuth:              ErrAuthentication,
	ErrorCodePermission:        ErrPermissionDenied,
	ErrorCodeProxyAuth:         ErrProxyAuth,
	ErrorCodeNetwork:           ErrNetwork,
	ErrorCodeDNS:               ErrDNS,
	ErrorCodeConnectionRefused: ErrConnectionRefused,
	ErrorCodeTimeout:           ErrTimeout,
	ErrorCodeUnavailable:       ErrServiceUnavailable,
	ErrorCodeTooling:           ErrToolCallingNotSupported,
	ErrorCodeInvalidRequest:    ErrInvalidRequest,
	ErrorCodeEmptyResponse:     ErrEmptyResponse,
}

var userMessages = map[ErrorCode]string{
	ErrorCodeContextLength:     "The conversation is too long for this model. Clear the session or lower context.maxTokens.",
	ErrorCodeContentBlocked:    "The provider blocked the response with its safety filters.",
	ErrorCodeRateLimit:         "Rate limit reached (429). Wait a moment and try again.",
	ErrorCodeAuth:              "Authentication failed (401). Check the API key for the configured provider.",
	ErrorCodePermission:        "Access denied (403). The API key is not allowed to use this model or endpoint.",
	ErrorCodeProxyAuth:         "Proxy authentication required (407). Check your proxy credentials.",
	ErrorCodeNetwork:           "Network error while contacting the provider. Check your connection.",
	ErrorCodeDNS:               "DNS lookup failed. Check provider.baseURL and your network connection.",
	ErrorCodeConnectionRefused: "Connection refused. Is the provider endpoint running and reachable?",
	ErrorCodeTimeout:           "The request timed out. The provider may be slow or unreachable.",
	ErrorCodeUnavailable:       "The provider is temporarily unavailable. Try again shortly.",
	ErrorCodeTooling:           "The selected provider does not support tool calling. Pick another provider for goals.",
	ErrorCodeEmptyResponse:     "The provider returned an empty response.",
}

// ProviderError wraps errors with additional context.
type ProviderError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retryable  bool
	RetryAfter *time.Duration
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// Is matches the sentinel that corresponds to the error code.
func (e *ProviderError) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// UserMessage returns the actionable text shown to the user for this failure.
func (e *ProviderError) UserMessage() string {
	if msg, ok := userMessages[e.Code]; ok {
		return msg
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return false
}

// GetRetryAfter returns the retry-after duration if present.
func GetRetryAfter(err error) *time.Duration {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.RetryAfter
	}
	return nil
}

// UserMessage returns the user-facing text for any error returned by a provider.
func UserMessage(err error) string {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.UserMessage()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// FromStatus maps an HTTP status code returned by a backend to a ProviderError.
func FromStatus(status int, message string, err error) *ProviderError {
	pe := &ProviderError{Message: message, Underlying: err}
	switch {
	case status == http.StatusUnauthorized:
		pe.Code = ErrorCodeAuth
	case status == http.StatusForbidden:
		pe.Code = ErrorCodePermission
	case status == http.StatusProxyAuthRequired:
		pe.Code = ErrorCodeProxyAuth
	case status == http.StatusTooManyRequests:
		pe.Code = ErrorCodeRateLimit
		pe.Retryable = true
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		pe.Code = ErrorCodeTimeout
		pe.Retryable = true
	case status == http.StatusRequestEntityTooLarge:
		pe.Code = ErrorCodeContextLength
	case status >= 500:
		pe.Code = ErrorCodeUnavailable
		pe.Retryable = true
	case status >= 400:
		pe.Code = ErrorCodeInvalidRequest
	default:
		pe.Code = ErrorCodeNetwork
		pe.Retryable = true
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}
	return pe
}

// Classify converts a transport-level failure into a ProviderError.
// ProviderErrors pass through unchanged and cancellation is returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return &ProviderError{Code: ErrorCodeDNS, Message: fmt.Sprintf("cannot resolve %s", dnsErr.Name), Underlying: err}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &ProviderError{Code: ErrorCodeConnectionRefused, Message: "connection refused", Underlying: err, Retryable: true}
	case errors.Is(err, context.DeadlineExceeded):
		return &ProviderError{Code: ErrorCodeTimeout, Message: "request timed out", Underlying: err, Retryable: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProviderError{Code: ErrorCodeTimeout, Message: "request timed out", Underlying: err, Retryable: true}
	}

	return &ProviderError{Code: ErrorCodeNetwork, Message: "network error", Underlying: err, Retryable: true}
}
