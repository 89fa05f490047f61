package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation            ErrorType = "validation"
	ErrorTypeParse                 ErrorType = "parse"
	ErrorTypeNotFound              ErrorType = "not_found"
	ErrorTypeDownstreamUnavailable ErrorType = "downstream_unavailable"
	ErrorTypeDownstreamError       ErrorType = "downstream_error"
	ErrorTypeStoreUnavailable      ErrorType = "store_unavailable"
	ErrorTypeInternal              ErrorType = "internal"
	ErrorTypeTimeout               ErrorType = "timeout"
)

// AppError represents an application error with context
type AppError struct {
	Type      ErrorType         `json:"type"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id"`
	Timestamp time.Time         `json:"timestamp"`
	Cause     error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Details:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithRequestID adds a request ID to the error
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// Common error constructors
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, "VALIDATION_ERROR", message)
}

func NewParseError(message string) *AppError {
	return NewAppError(ErrorTypeParse, "PARSE_ERROR", message)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource))
}

func NewDownstreamUnavailableError(handler string, cause error) *AppError {
	return NewAppError(ErrorTypeDownstreamUnavailable, "DOWNSTREAM_UNAVAILABLE",
		fmt.Sprintf("downstream handler %s is unreachable", handler)).
		WithDetail("handler", handler).
		WithCause(cause)
}

func NewDownstreamError(handler string, statusCode int) *AppError {
	return NewAppError(ErrorTypeDownstreamError, "DOWNSTREAM_ERROR",
		fmt.Sprintf("downstream handler %s returned status %d", handler, statusCode)).
		WithDetail("handler", handler).
		WithDetail("status_code", fmt.Sprintf("%d", statusCode))
}

func NewStoreUnavailableError(operation string, cause error) *AppError {
	return NewAppError(ErrorTypeStoreUnavailable, "STORE_UNAVAILABLE",
		fmt.Sprintf("state store operation %s failed", operation)).
		WithDetail("operation", operation).
		WithCause(cause)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

func NewTimeoutError(operation string) *AppError {
	return NewAppError(ErrorTypeTimeout, "TIMEOUT", fmt.Sprintf("%s timed out", operation))
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type == errorType
	}
	return false
}

// IsParseError checks if the error is a parse error
func IsParseError(err error) bool {
	return IsType(err, ErrorTypeParse)
}

// IsStoreUnavailable checks if the error is a state store failure
func IsStoreUnavailable(err error) bool {
	return IsType(err, ErrorTypeStoreUnavailable)
}

// GetCode returns the error code if it's an AppError
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetType returns the error type if it's an AppError
func GetType(err error) ErrorType {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// HTTPStatus maps an error to the status code the API should answer with
func HTTPStatus(err error) int {
	switch GetType(err) {
	case ErrorTypeValidation, ErrorTypeParse:
		return 400
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeTimeout, ErrorTypeDownstreamUnavailable, ErrorTypeStoreUnavailable:
		return 503
	case ErrorTypeDownstreamError:
		return 502
	default:
		return 500
	}
}
