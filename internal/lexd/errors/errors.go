// Package errors provides standardized error handling for the LexDesk server
package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors that can be used across the application
var (
	// ErrNotFound indicates a requested resource doesn't exist
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates a resource already exists
	ErrConflict = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates an upstream dependency could not be reached
	ErrUnavailable = errors.New("service unavailable")

	// ErrTooLarge indicates a request body exceeded the configured limit
	ErrTooLarge = errors.New("payload too large")
)

// Error represents a domain error with additional context
type Error struct {
	// Code is a machine-readable error code
	Code string
	// Message is a human-readable error description
	Message string
	// Op describes the operation that failed
	Op string
	// Err is the underlying error
	Err error
}

// Error implements the error interface with a formatted message
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain handling
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given details
func NewError(code string, message string, op string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Invalid wraps ErrInvalidInput with an operation and a human-readable reason
func Invalid(op string, format string, args ...interface{}) *Error {
	return NewError("INVALID_INPUT", fmt.Sprintf(format, args...), op, ErrInvalidInput)
}

// IsNotFound returns true if err represents a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if err represents a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidInput returns true if err represents an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnavailable returns true if err represents an unreachable dependency
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsTooLarge returns true if err represents an oversized payload
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrTooLarge)
}
