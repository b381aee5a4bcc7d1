// Package errors defines the stable error codes for layerlint.
package errors

import (
	"errors"
	"fmt"
	"io"
)

// Code is a stable error code string.
type Code string

// Error codes.
const (
	ENotDirectory  Code = "E_NOT_DIRECTORY"
	EInvalidConfig Code = "E_INVALID_CONFIG"
	EInvalidPolicy Code = "E_INVALID_POLICY"
	EScanFailed    Code = "E_SCAN_FAILED"
)

// LintError is the standard error type for layerlint errors.
type LintError struct {
	Code  Code
	Msg   string
	Cause error
}

// Error returns "CODE: message", followed by the cause when there is one.
func (e *LintError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *LintError) Unwrap() error {
	return e.Cause
}

// New creates a new LintError with the given code and message.
func New(code Code, msg string) error {
	return &LintError{Code: code, Msg: msg}
}

// Wrap creates a new LintError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &LintError{Code: code, Msg: msg, Cause: err}
}

// GetCode extracts the error code from an error, or empty string if not a LintError.
func GetCode(err error) Code {
	var le *LintError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// ExitCode returns 0 for nil and 1 for every error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Print writes the error to w as "Error: <message>". A wrapped cause is
// appended after the message.
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var le *LintError
	if !errors.As(err, &le) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	if le.Cause != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", le.Msg, le.Cause)
		return
	}
	fmt.Fprintf(w, "Error: %s\n", le.Msg)
}
