// Package errors provides the error taxonomy shared by the data client,
// the notification listeners and the Lambda entry points.
//
// Every error crossing a package boundary is a *UnifiedError so callers can
// classify it without string matching: NOT_FOUND and VALIDATION surface to
// the caller as-is, INTERNAL marks corrupt persisted data and is never
// returned verbatim, EXTERNAL marks a failed upstream call.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ============================================================================
// ERROR TYPES AND CLASSIFICATION
// ============================================================================

// ErrorType defines the category of error for proper handling and response.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeInternal   ErrorType = "INTERNAL"
	ErrorTypeExternal   ErrorType = "EXTERNAL"
)

// GenericInternalMessage is the only text an INTERNAL error shows to API consumers.
const GenericInternalMessage = "internal data integrity error"

// ============================================================================
// UNIFIED ERROR STRUCTURE
// ============================================================================

// UnifiedError is the single error type used across the backend.
type UnifiedError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details"`

	Operation string `json:"operation"`
	Resource  string `json:"resource"`

	Retryable bool  `json:"retryable"`
	Cause     error `json:"-"`

	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e *UnifiedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with the underlying cause.
func (e *UnifiedError) Unwrap() error {
	return e.Cause
}

// ============================================================================
// ERROR BUILDER FOR FLUENT CONSTRUCTION
// ============================================================================

// ErrorBuilder provides a fluent interface for constructing UnifiedError instances.
type ErrorBuilder struct {
	error *UnifiedError
}

// NewError starts a builder. Prefer the typed constructors below.
func NewError(errType ErrorType, code, message string) *ErrorBuilder {
	return &ErrorBuilder{error: &UnifiedError{Type: errType, Code: code, Message: message}}
}

// WithDetails adds additional details to the error.
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithDetailsf is WithDetails with formatting.
func (b *ErrorBuilder) WithDetailsf(format string, args ...any) *ErrorBuilder {
	b.error.Details = fmt.Sprintf(format, args...)
	return b
}

// WithOperation specifies the operation that failed.
func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.error.Operation = operation
	return b
}

// WithResource specifies the resource being operated on.
func (b *ErrorBuilder) WithResource(resource string) *ErrorBuilder {
	b.error.Resource = resource
	return b
}

// WithRetryable marks the error as retryable.
func (b *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	b.error.Retryable = retryable
	return b
}

// WithCause adds the underlying cause error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// Build returns the error, stamped with the location Build was called from.
func (b *ErrorBuilder) Build() *UnifiedError {
	_, b.error.File, b.error.Line, _ = runtime.Caller(1)
	return b.error
}

// ============================================================================
// CONVENIENCE CONSTRUCTORS
// ============================================================================

// Validation creates an invalid-request error.
func Validation(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeValidation, code, message)
}

// NotFound creates a not found error.
func NotFound(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeNotFound, code, message)
}

// Conflict creates a conflict error.
func Conflict(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeConflict, code, message).
		WithRetryable(true)
}

// Internal creates a data integrity error.
func Internal(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeInternal, code, message)
}

// External creates an upstream failure error.
func External(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeExternal, code, message).
		WithRetryable(true)
}

// ============================================================================
// ERROR CLASSIFICATION AND CHECKING
// ============================================================================

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Type == errType
	}
	return false
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsInternal checks if an error is an internal error.
func IsInternal(err error) bool {
	return IsType(err, ErrorTypeInternal)
}

// IsExternal checks if an error is an upstream failure.
func IsExternal(err error) bool {
	return IsType(err, ErrorTypeExternal)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Retryable
	}
	return false
}

// Code returns the code of a UnifiedError, or "" for any other error.
func Code(err error) string {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Code
	}
	return ""
}

// PublicMessage returns the text that may be shown to an API consumer.
// INTERNAL errors and unclassified errors collapse to a generic message
// since their details can carry fields lifted out of a corrupt record.
func PublicMessage(err error) string {
	var unifiedErr *UnifiedError
	if !errors.As(err, &unifiedErr) || unifiedErr.Type == ErrorTypeInternal {
		return GenericInternalMessage
	}
	return unifiedErr.Message
}

// HTTPStatus maps an error to the status an API entry point responds with.
func HTTPStatus(err error) int {
	var unifiedErr *UnifiedError
	if !errors.As(err, &unifiedErr) {
		return http.StatusInternalServerError
	}
	switch unifiedErr.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
