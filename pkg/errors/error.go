// Package errors provides structured errors with typed codes.
//
// Code ranges:
//   - General (1-99)
//   - Validation (100-199): bad parameters or configuration
//   - Data (200-299): persistence and query failures
//   - Price (300-399): price gateway conditions
//   - Signal (400-499): signal lifecycle conflicts
//   - Automation (500-599): search loop outcomes
//   - Transport (600-699): upstream HTTP and stream failures
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeDataNotFound, "signal %s not found", id)
//	if errors.HasCode(err, errors.ErrCodeDataNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error is a structured error carrying a code, a message and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates an Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf attaches a code and formatted message to cause.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is wraps the standard errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps the standard errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode returns the code of the first *Error in the chain, or ErrCodeUnknown.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeUnknown
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsTransient reports whether err only delays progress and may be retried.
func IsTransient(err error) bool {
	switch GetCode(err) {
	case ErrCodePriceNotReady, ErrCodePriceUnavailable, ErrCodeRateLimited,
		ErrCodeDataSourceUnavailable, ErrCodeUpstreamStatus, ErrCodeUpstreamTransport:
		return true
	default:
		return false
	}
}
