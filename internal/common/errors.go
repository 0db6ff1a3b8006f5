package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrNetwork marks a rejected or unreachable remote call. It is surfaced to
	// the caller and never retried by the core.
	ErrNetwork = errors.New("network failure")
	// ErrPartialBatch marks a sequential batch that stopped after some steps
	// were already committed server-side.
	ErrPartialBatch = errors.New("partial batch failure")
	// ErrNoSuggestion is returned when no suggestion is valid for the current
	// receipt state.
	ErrNoSuggestion = errors.New("no valid reconciliation suggestion")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNetworkFailure reports whether err came from the remote API.
func IsNetworkFailure(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// Message renders err for user-facing surfaces. Failures are never swallowed:
// a nil error renders empty, anything else renders its text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
