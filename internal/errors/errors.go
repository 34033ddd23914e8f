// Package errors defines structured error types returned by the store and its services.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode defines specific error types.
type ErrorCode string

const (
	// ErrValidationFailed is returned when input data fails validation
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrMissingField is returned when a required field is missing
	ErrMissingField ErrorCode = "MISSING_FIELD"

	// ErrNotFound is returned when an entity is not found
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrConflict is returned when an id or unique value is already taken
	ErrConflict ErrorCode = "CONFLICT"

	// ErrUnauthorized is returned when credentials are rejected
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrNoSession is returned when an operation needs a current user and there is none
	ErrNoSession ErrorCode = "NO_SESSION"
	// ErrRateLimited is returned when too many attempts were made
	ErrRateLimited ErrorCode = "RATE_LIMITED"

	// ErrQuotaExceeded is returned when the storage medium is full
	ErrQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	// ErrStorageError is returned when a storage operation fails
	ErrStorageError ErrorCode = "STORAGE_ERROR"
	// ErrInternal is returned when an unexpected error occurs
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a concrete error type with a code and optional details.
type Error struct {
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		code:    code,
		message: message,
		details: make(map[string]any),
	}
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// Is reports whether target is an *Error with the same code.
//
// This lets callers write errors.Is(err, errors.New(errors.ErrNoSession, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Predefined error constructors for common cases

// NotFound creates a not found error.
func NotFound(resource string) *Error {
	return New(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(ErrValidationFailed, message)
}

// MissingField creates an error for a missing field.
func MissingField(fieldName string) *Error {
	return New(ErrMissingField, fmt.Sprintf("missing required field: %s", fieldName)).WithDetail("field", fieldName)
}

// Conflict creates a conflict error.
func Conflict(message string) *Error {
	return New(ErrConflict, message)
}

// Unauthorized returns an error for rejected credentials.
func Unauthorized() *Error {
	return New(ErrUnauthorized, "invalid credentials")
}

// NoSession returns the error for operations that need a current user.
func NoSession() *Error {
	return New(ErrNoSession, "no user is signed in")
}

// RateLimited returns an error for throttled attempts.
func RateLimited(what string) *Error {
	return New(ErrRateLimited, fmt.Sprintf("too many %s attempts", what))
}

// QuotaExceeded returns an error for a full storage medium.
func QuotaExceeded(used, limit int64) *Error {
	return New(ErrQuotaExceeded, "storage quota exceeded").WithDetail("used", used).WithDetail("limit", limit)
}

// Storage wraps a storage failure.
func Storage(message string, err error) *Error {
	return New(ErrStorageError, message).Wrap(err)
}

// InternalWithError creates an internal error wrapping an underlying error.
func InternalWithError(message string, err error) *Error {
	return New(ErrInternal, message).Wrap(err)
}
