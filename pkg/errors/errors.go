package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an error for HTTP status mapping
type ErrorType string

const (
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnavailable  ErrorType = "unavailable"
	ErrorTypeBadRequest   ErrorType = "bad_request"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
)

// Machine-readable reason codes surfaced in error response bodies.
// Operational detail (causes, store errors) never leaves the logs.
const (
	CodeMissingCredential  = "missing_credential"
	CodeMalformedToken     = "malformed_token"
	CodeExpiredToken       = "expired_token"
	CodeRevokedToken       = "revoked_token"
	CodeRateLimitExceeded  = "rate_limit_exceeded"
	CodeServiceNotFound    = "service_not_found"
	CodeServiceUnavailable = "service_unavailable"
	CodeGatewayTimeout     = "gateway_timeout"
	CodeInvalidRequest     = "invalid_request"
	CodeInternalError      = "internal_error"
)

// Error represents a structured error with additional context
type Error struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Details map[string]any
}

// NewError creates a new structured error
func NewError(errType ErrorType, code, message string) *Error {
	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithCause adds the underlying cause to the error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value any) *Error {
	e.Details[key] = value
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is; two errors match when their types match and,
// if the target carries a code, the codes match too
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// HTTPStatusCode returns the HTTP status code for the error type
func (e *Error) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeBadRequest:
		return 400
	case ErrorTypeUnauthorized:
		return 401
	case ErrorTypeRateLimit:
		return 429
	case ErrorTypeUnavailable:
		return 503
	case ErrorTypeTimeout:
		return 504
	default:
		return 500
	}
}

// As delegates to the standard library
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is delegates to the standard library
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
