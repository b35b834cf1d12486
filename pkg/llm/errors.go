package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies a generation failure.
type ErrorType string

// Error types.
const (
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// ErrNoContent is returned when a provider answers without any text.
var ErrNoContent = errors.New("llm response has no text content")

// Error is a classified provider error.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	StatusCode int
	Model      string
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := []string{string(e.Type)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the provider error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements retry.RetryableError.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// ClassifyError wraps a provider error for model in an *Error. The HTTP status
// is taken from go-openai error types when present, otherwise from the message.
func ClassifyError(err error, model string) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	status := statusCode(err)
	lower := strings.ToLower(err.Error())

	e := &Error{Type: ErrorTypeUnknown, Message: "llm error", StatusCode: status, Model: model, Cause: err}
	switch {
	case status == 401 || status == 403 || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "authentication_error"):
		e.Type, e.Message = ErrorTypeAuth, "authentication failed"
	case status == 404 || strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		e.Type, e.Message = ErrorTypeModel, "model not found"
	case status == 429 || strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit"):
		e.Type, e.Message, e.Retryable = ErrorTypeRateLimit, "rate limited", true
	case status >= 500 || strings.Contains(lower, "overloaded") || strings.Contains(lower, "service unavailable"):
		e.Type, e.Message, e.Retryable = ErrorTypeEndpoint, "server error", true
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host"):
		e.Type, e.Message, e.Retryable = ErrorTypeEndpoint, "connection failed", true
	case strings.Contains(lower, "deadline exceeded") || strings.Contains(lower, "timeout"):
		e.Type, e.Message, e.Retryable = ErrorTypeEndpoint, "request timeout", true
	}
	return e
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	for _, code := range []int{401, 403, 404, 429, 500, 502, 503, 504, 529} {
		if strings.Contains(err.Error(), fmt.Sprintf("%d", code)) {
			return code
		}
	}
	return 0
}
