package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nnnkkk7/agriqa/pkg/apperrors"
	"github.com/nnnkkk7/agriqa/pkg/engine"
	"github.com/nnnkkk7/agriqa/pkg/params"
	"github.com/nnnkkk7/agriqa/pkg/query"
)

// Error codes returned in the "code" field of error responses.
const (
	// Request errors (100xxx)
	CodeInvalidRequest           = "100001"
	CodeInvalidParameter         = "100002"
	CodeUnsupportedParameterType = "100003"
	CodeUnsafeQuery              = "100004"
	CodeNoStatements             = "100005"

	// Catalogue errors (200xxx)
	CodeTemplateNotFound     = "200004"
	CodeInvocationNotFound   = "200005"
	CodeInvocationNotRunning = "200006"

	// Throttling (300xxx)
	CodeRateLimited = "300429"

	// System errors (000xxx)
	CodeInternalError = "000001"
	CodeUnavailable   = "000003"
)

// SQLState represents SQL standard error states.
const (
	SQLStateInvalidParameter      = "22023"
	SQLStateDataException         = "22000"
	SQLStateInsufficientPrivilege = "42501"
	SQLStateUndefinedObject       = "42S02"
	SQLStateNoData                = "02000"
	SQLStateGeneralError          = "HY000"
)

var sqlStates = map[string]string{
	CodeInvalidParameter:         SQLStateInvalidParameter,
	CodeUnsupportedParameterType: SQLStateDataException,
	CodeUnsafeQuery:              SQLStateInsufficientPrivilege,
	CodeNoStatements:             SQLStateNoData,
	CodeTemplateNotFound:         SQLStateUndefinedObject,
	CodeInvocationNotFound:       SQLStateUndefinedObject,
}

var statuses = map[string]int{
	CodeInvalidRequest:           http.StatusBadRequest,
	CodeInvalidParameter:         http.StatusBadRequest,
	CodeUnsupportedParameterType: http.StatusBadRequest,
	CodeUnsafeQuery:              http.StatusUnprocessableEntity,
	CodeNoStatements:             http.StatusUnprocessableEntity,
	CodeTemplateNotFound:         http.StatusNotFound,
	CodeInvocationNotFound:       http.StatusNotFound,
	CodeInvocationNotRunning:     http.StatusConflict,
	CodeRateLimited:              http.StatusTooManyRequests,
	CodeUnavailable:              http.StatusServiceUnavailable,
}

// GetSQLState returns the SQL state for a given error code.
func GetSQLState(code string) string {
	if state, ok := sqlStates[code]; ok {
		return state
	}
	return SQLStateGeneralError
}

// HTTPStatus returns the response status for a given error code.
func HTTPStatus(code string) int {
	if status, ok := statuses[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// APIError is an error rendered to API clients.
type APIError struct {
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	SQLState string                 `json:"sqlState,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// MarshalJSON implements custom JSON marshaling.
func (e *APIError) MarshalJSON() ([]byte, error) {
	type Alias APIError
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(e),
	})
}

// Status returns the HTTP status the error is sent with.
func (e *APIError) Status() int {
	return HTTPStatus(e.Code)
}

// WithData adds data to the error.
func (e *APIError) WithData(key string, value interface{}) *APIError {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

// Is checks if this error matches another error by code.
func (e *APIError) Is(target error) bool {
	var apiErr *APIError
	if errors.As(target, &apiErr) {
		return e.Code == apiErr.Code
	}
	return false
}

// ErrorResponse represents the JSON response structure for errors.
// This is the unified response type used by all handlers.
type ErrorResponse struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Code     string                 `json:"code"`
	SQLState string                 `json:"sqlState,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// ToResponse converts the APIError to an ErrorResponse.
func (e *APIError) ToResponse() *ErrorResponse {
	data := make(map[string]interface{}, len(e.Data))
	for k, v := range e.Data {
		data[k] = v
	}

	return &ErrorResponse{
		Success:  false,
		Message:  e.Message,
		Code:     e.Code,
		SQLState: e.SQLState,
		Data:     data,
	}
}

// New creates a new APIError with the given code and message.
func New(code, message string) *APIError {
	return &APIError{
		Code:     code,
		Message:  message,
		SQLState: GetSQLState(code),
		Data:     make(map[string]interface{}),
	}
}

// NewInvalidRequestError reports a malformed request body.
func NewInvalidRequestError(message string) *APIError {
	return New(CodeInvalidRequest, message)
}

// NewTemplateNotFoundError creates a template not found error.
func NewTemplateNotFoundError(id string) *APIError {
	return New(CodeTemplateNotFound, fmt.Sprintf("Template not found: '%s'", id)).
		WithData("template", id)
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *APIError {
	return New(CodeInternalError, message)
}

// NewRateLimitedError reports a throttled client.
func NewRateLimitedError(retryAfterSecs int) *APIError {
	e := New(CodeRateLimited, "rate limit exceeded")
	if retryAfterSecs > 0 {
		e.WithData("retryAfter", retryAfterSecs)
	}
	return e
}

// FromError converts an error from the query path to an APIError.
// If the error is already an APIError, it returns it as-is.
// If the error is nil, it returns nil.
// Unrecognised errors become internal errors.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var perr *params.ParameterError
	var uerr *query.UnsafeQueryError

	switch {
	case errors.As(err, &perr):
		code := CodeInvalidParameter
		if errors.Is(err, apperrors.ErrUnsupportedParameterType) {
			code = CodeUnsupportedParameterType
		}
		e := New(code, err.Error()).WithData("param", perr.Name)
		if perr.Reason != "" {
			e.WithData("reason", perr.Reason)
		}
		if perr.Class >= 0 {
			e.WithData("class", perr.Class.String())
		}
		return e
	case errors.As(err, &uerr):
		return New(CodeUnsafeQuery, err.Error()).WithData("keyword", uerr.Keyword)
	case errors.Is(err, apperrors.ErrInvalidParameter):
		return New(CodeInvalidParameter, err.Error())
	case errors.Is(err, apperrors.ErrUnsupportedParameterType):
		return New(CodeUnsupportedParameterType, err.Error())
	case errors.Is(err, apperrors.ErrUnsafeQuery):
		return New(CodeUnsafeQuery, err.Error())
	case errors.Is(err, apperrors.ErrNoStatements):
		return New(CodeNoStatements, err.Error())
	case errors.Is(err, apperrors.ErrTemplateNotFound):
		return New(CodeTemplateNotFound, err.Error())
	case errors.Is(err, engine.ErrInvocationNotFound):
		return New(CodeInvocationNotFound, err.Error())
	case errors.Is(err, engine.ErrNotRunning):
		return New(CodeInvocationNotRunning, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return New(CodeUnavailable, "request timed out")
	}

	return NewInternalError(err.Error())
}
