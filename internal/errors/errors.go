// Package errors provides the structured error type shared by the drawing
// store, the serialization gateway and the API server.
//
// Every failure that reaches a user carries a Code so callers can tell a
// malformed file apart from an expired session without string matching:
//
//	if errors.Is(err, errors.CodeUnauthorized) {
//	    // ask the user to sign in again
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	// CodeParseFailure marks text that is not valid JSON.
	CodeParseFailure Code = "PARSE_FAILURE"
	// CodeInvalidFormat marks well-formed JSON that is not a drawing.
	CodeInvalidFormat Code = "INVALID_FORMAT"
	// CodeUnauthorized marks a missing, invalid, expired or revoked token.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeTransportFailure marks network and file I/O failures.
	CodeTransportFailure Code = "TRANSPORT_FAILURE"
	// CodeServerRejected marks a non-2xx answer from the API.
	CodeServerRejected Code = "SERVER_REJECTED"

	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
	CodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with a formatted message around cause.
// Wrapping a nil cause returns nil.
func Wrap(code Code, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the code of the outermost *Error in err's chain,
// or CodeInternal when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Message returns the short text shown in the status bar for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong"
	}
	switch e.Code {
	case CodeParseFailure:
		return "Error importing file"
	case CodeInvalidFormat:
		return "Invalid file format"
	case CodeUnauthorized:
		return "Please sign in again"
	case CodeTransportFailure:
		return "Could not read or write the drawing"
	case CodeServerRejected:
		if e.Message != "" {
			return e.Message
		}
		return "The server rejected the request"
	case CodeNotFound:
		return "Nothing saved yet"
	}
	return e.Message
}
