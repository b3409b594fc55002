package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the closed set of failure kinds the engine produces
type ErrorType string

const (
	// ErrorTypeLoginRequired means authentication is absent or a block page
	// was detected with no cookies supplied. It is the only kind surfaced
	// to callers with its own semantic code and is never retried.
	ErrorTypeLoginRequired ErrorType = "login_required"
	// ErrorTypeNavigation covers navigation failures and timeouts. These are
	// absorbed locally unless they cascade into an empty, blocked run.
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeExtraction is a per-candidate extraction failure, always
	// recovered by skipping the candidate.
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeDiagnostic is a failure to write diagnostic artifacts.
	ErrorTypeDiagnostic ErrorType = "diagnostic"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error is a tagged engine error. DiagnosticScreenshot/DiagnosticSnapshot
// are set on login failures when artifact capture succeeded.
type Error struct {
	Type    ErrorType
	Message string
	Err     error

	DiagnosticScreenshot string
	DiagnosticSnapshot   string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error without a cause.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a tagged error wrapping a cause.
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// LoginRequired creates the distinguished authentication-needed error,
// carrying paths to any diagnostic artifacts captured before failing.
func LoginRequired(message, screenshotPath, snapshotPath string) *Error {
	return &Error{
		Type:                 ErrorTypeLoginRequired,
		Message:              message,
		DiagnosticScreenshot: screenshotPath,
		DiagnosticSnapshot:   snapshotPath,
	}
}

// TypeOf returns the tagged type of err, or ErrorTypeUnknown for untyped
// errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsLoginRequired reports whether err is the caller-facing authentication
// failure.
func IsLoginRequired(err error) bool {
	return TypeOf(err) == ErrorTypeLoginRequired
}

// IsRetryable reports whether an error kind is safe to retry. Login
// failures never are; transient navigation problems may be.
func IsRetryable(t ErrorType) bool {
	switch t {
	case ErrorTypeNavigation, ErrorTypeUnknown:
		return true
	default:
		return false
	}
}
