// Package domainerrors defines the error taxonomy shared across services,
// handlers, and clients. Errors carry a stable machine-readable code plus a
// human-readable description; transport layers map codes to status lines.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure independent of transport.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodePrecondition       Code = "precondition_failed"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeGone               Code = "gone"
	CodeNetwork            Code = "network_error"
	CodeHTTP               Code = "http_error"
	CodeVerificationFailed Code = "verification_failed"
	CodeDecoding           Code = "decoding_error"
	CodeInternal           Code = "internal_error"
)

// Error is the concrete error type produced by New and Wrap.
type Error struct {
	Code    Code
	Message string
	// Status carries the upstream HTTP status for CodeHTTP errors; zero
	// otherwise.
	Status int
	cause  error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an error with the given code and description.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds an error with a formatted description.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewHTTP builds a CodeHTTP error recording the upstream status code.
func NewHTTP(status int, message string) error {
	return &Error{Code: CodeHTTP, Message: message, Status: status}
}

// Wrap attaches a code to an underlying error while preserving the chain.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, or CodeInternal when err is not part of
// the taxonomy.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus extracts the upstream status from a CodeHTTP error, or zero.
func HTTPStatus(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.Status
	}
	return 0
}

// Description returns the human-readable message without the code prefix.
func Description(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
