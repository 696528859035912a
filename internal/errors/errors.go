package errors

import (
	"errors"
	"fmt"
)

// Error codes for programmatic handling.
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeBackendUnknown    = "BACKEND_UNKNOWN"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeNotInitialized    = "NOT_INITIALIZED"
	CodeCorruptData       = "CORRUPT_DATA"
	CodeEmbeddingFailed   = "EMBEDDING_FAILED"
	CodeAPIKeyMissing     = "API_KEY_MISSING"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
)

// ParleyError is a structured error with a code and actionable suggestion.
type ParleyError struct {
	Code       string // machine-readable code (e.g. STORE_UNAVAILABLE)
	Message    string // human-readable description
	Suggestion string // actionable fix
	Err        error  // wrapped underlying error
}

// Error implements the error interface.
func (e *ParleyError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports errors.Is / errors.As.
func (e *ParleyError) Unwrap() error {
	return e.Err
}

// New creates a ParleyError with the given code and message.
func New(code, message string) *ParleyError {
	return &ParleyError{Code: code, Message: message}
}

// Wrap creates a ParleyError wrapping an existing error.
func Wrap(code, message string, err error) *ParleyError {
	return &ParleyError{Code: code, Message: message, Err: err}
}

// WithSuggestion returns a copy with the suggestion set.
func (e *ParleyError) WithSuggestion(suggestion string) *ParleyError {
	e.Suggestion = suggestion
	return e
}

// Is checks whether target matches this error's code.
func (e *ParleyError) Is(target error) bool {
	var pe *ParleyError
	if errors.As(target, &pe) {
		return e.Code == pe.Code
	}
	return false
}

// AsCode extracts the ParleyError code from an error, or "" if not a ParleyError.
func AsCode(err error) string {
	var pe *ParleyError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Suggestion extracts the suggestion from an error, or "" if not a ParleyError.
func Suggestion(err error) string {
	var pe *ParleyError
	if errors.As(err, &pe) {
		return pe.Suggestion
	}
	return ""
}
