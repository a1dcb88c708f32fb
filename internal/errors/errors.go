package errors

import (
	"fmt"
)

// AssistantError is the structured error type for the research assistant.
// It provides rich context for error handling, logging, and user presentation.
type AssistantError struct {
	// Code is the unique error code (e.g., "ERR_301_INDEX_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Dependency, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *AssistantError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AssistantError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with AssistantError.
func (e *AssistantError) Is(target error) bool {
	if t, ok := target.(*AssistantError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AssistantError) WithDetail(key, value string) *AssistantError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new AssistantError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AssistantError {
	return &AssistantError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AssistantError from an existing error.
// The error's message becomes the AssistantError message.
func Wrap(code string, err error) *AssistantError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidParameter creates a validation error for a malformed request
// parameter. Raised before any external call is made.
func InvalidParameter(message string) *AssistantError {
	return New(ErrCodeInvalidParameter, message, nil)
}

// IndexUnavailable creates a dependency error for the vector index.
func IndexUnavailable(cause error) *AssistantError {
	return New(ErrCodeIndexUnavailable, "vector index unavailable", cause)
}

// GraphUnavailable creates a dependency error for the graph store.
func GraphUnavailable(cause error) *AssistantError {
	return New(ErrCodeGraphUnavailable, "knowledge graph unavailable", cause)
}

// RetrievalUnavailable creates the fail-fast retrieval error, tagged with
// the phase ("vector" or "graph") whose dependency failed. No partial
// context bundle accompanies this error.
func RetrievalUnavailable(phase string, cause error) *AssistantError {
	e := New(ErrCodeRetrievalUnavailable,
		fmt.Sprintf("retrieval unavailable: %s phase failed", phase), cause)
	return e.WithDetail("phase", phase)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AssistantError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AssistantError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an AssistantError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AssistantError); ok {
		return ae.Retryable
	}
	return false
}

// GetCode extracts the error code from an AssistantError.
// Returns empty string if not an AssistantError.
func GetCode(err error) string {
	if ae, ok := err.(*AssistantError); ok {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AssistantError.
// Returns empty string if not an AssistantError.
func GetCategory(err error) Category {
	if ae, ok := err.(*AssistantError); ok {
		return ae.Category
	}
	return ""
}
