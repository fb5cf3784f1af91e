// Package errors defines the error codes and wrapped-error type shared
// across the compilation pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the compilation pipeline.
const (
	CodeUnknown            = "UNKNOWN_ERROR"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeBadInput           = "BAD_INPUT"
	CodeResourceExhausted  = "RESOURCE_EXHAUSTED"
	CodeEncodingFailure    = "ENCODING_FAILURE"
)

// AppError represents a pipeline error carrying a stable code alongside
// the human-readable message and (optionally) the underlying cause and
// the pipeline phase it surfaced in.
type AppError struct {
	Code    string
	Message string
	Phase   string
	Err     error
}

// Error implements the error interface. The phase, when set, is folded
// in parenthetically between the code and the message so a bare
// errors.New-style reader still gets "CODE: message" for phase-less
// errors.
func (e *AppError) Error() string {
	head := e.Code
	if e.Phase != "" {
		head = fmt.Sprintf("%s (%s)", e.Code, e.Phase)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", head, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", head, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks whether target is, or itself wraps, an *AppError with a
// matching code, so callers can use errors.Is against one of the
// package's sentinel instances below regardless of whether target is
// that sentinel directly or something that wraps it.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError with no wrapped cause.
func New(code string, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// WithPhase returns a copy of e tagged with the pipeline phase it
// surfaced in (e.g. "liveness", "register-allocation"), leaving e
// itself untouched.
func (e *AppError) WithPhase(phase string) *AppError {
	cloned := *e
	cloned.Phase = phase
	return &cloned
}

// Sentinel errors, one per code, for errors.Is comparisons against a
// well-known category rather than a specific message.
var (
	ErrInvariantViolation = New(CodeInvariantViolation, "compiler invariant violated")
	ErrBadInput           = New(CodeBadInput, "malformed pipeline input")
	ErrResourceExhausted  = New(CodeResourceExhausted, "resource exhausted")
	ErrEncodingFailure    = New(CodeEncodingFailure, "instruction encoding failed")
)

// IsInvariantViolation reports whether err is (or wraps) an invariant
// violation — the category reserved for "the compiler's own internal
// contracts were broken," never for malformed user input.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsBadInput reports whether err is (or wraps) a bad-input error.
func IsBadInput(err error) bool {
	return errors.Is(err, ErrBadInput)
}

// IsResourceExhausted reports whether err is (or wraps) a
// resource-exhaustion error, e.g. a memory pool or iteration cap.
func IsResourceExhausted(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}

// IsEncodingFailure reports whether err is (or wraps) an instruction
// encoding failure.
func IsEncodingFailure(err error) bool {
	return errors.Is(err, ErrEncodingFailure)
}

// asAppError is the shared errors.As lookup Code, Message and Phase
// all build on.
func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Code extracts the error code from err, or CodeUnknown if err is not
// (or does not wrap) an *AppError.
func Code(err error) string {
	if ae, ok := asAppError(err); ok {
		return ae.Code
	}
	return CodeUnknown
}

// Message extracts the human-readable message from err, preferring the
// AppError's Message field over its formatted Error() string.
func Message(err error) string {
	if ae, ok := asAppError(err); ok {
		return ae.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Phase extracts the pipeline phase err was tagged with via WithPhase,
// or "" if err is not an *AppError or was never tagged.
func Phase(err error) string {
	if ae, ok := asAppError(err); ok {
		return ae.Phase
	}
	return ""
}
