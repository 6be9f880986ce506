// Package errors provides structured error types for the previewd service.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the pipeline and HTTP layer
//   - Machine-readable error codes for diagnostic headers
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map onto the pipeline's failure taxonomy: resolution, fetch,
// decode, remote-render, unsupported type, and timeout failures are all
// distinct so the handler can report why a fallback was served.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnsupported, "no strategy for mimetype %q", mime)
//	if errors.Is(err, errors.ErrCodeUnsupported) {
//	    // serve the fallback; preview.Service decides marker policy
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetch, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the pipeline's failure taxonomy.
const (
	// Resolution and fetch failures
	ErrCodeResolve  Code = "RESOLVE_FAILED"
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeFetch    Code = "FETCH_FAILED"

	// Rendering failures
	ErrCodeDecode      Code = "DECODE_FAILED"
	ErrCodeRender      Code = "RENDER_FAILED"
	ErrCodeUnsupported Code = "UNSUPPORTED_TYPE"

	// Transport and budget failures
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
