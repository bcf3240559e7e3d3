package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Error is the gateway error type with structured details.
type Error struct {
	Code    Code           // Machine-readable error code
	Message string         // Human-readable message
	Details map[string]any // Structured diagnostic detail
	Cause   error          // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple gateway error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a gateway error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithDetails creates a gateway error carrying structured details.
func WithDetails(code Code, message string, details map[string]any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Wrap creates a gateway error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinel returns a bare error for matching with errors.Is.
func Sentinel(code Code) error {
	return &Error{Code: code}
}

// As extracts the first *Error in the chain.
func As(err error) (*Error, bool) {
	var target *Error
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf classifies any error. Context deadline errors map to TIMEOUT and
// unclassified errors to UNKNOWN.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok && e.Code != "" {
		return e.Code
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeUnknown
}

// IsCode reports whether err is classified as code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Normalize returns err as an *Error, classifying foreign errors.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok && e.Code != "" {
		return e
	}
	return Wrap(CodeOf(err), err.Error(), err)
}
