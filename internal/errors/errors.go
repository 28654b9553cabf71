// Package errors provides a lightweight structured error type (PacklerError)
// for category-based classification of pipeline failures and CLI exit codes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a Packler error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryInput      ErrorCategory = "input"

	// External collaborators
	CategoryTool   ErrorCategory = "tool"
	CategoryUpload ErrorCategory = "upload"

	// Build and processing errors
	CategoryFileSystem    ErrorCategory = "filesystem"
	CategorySerialization ErrorCategory = "serialization"
	CategoryBuild         ErrorCategory = "build"
	CategoryPartial       ErrorCategory = "partial"

	// Runtime errors
	CategoryLock           ErrorCategory = "lock"
	CategoryNotImplemented ErrorCategory = "not_implemented"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// PacklerError is a structured error with category, retryability, and context
type PacklerError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for PacklerError
type ContextFields map[string]any

// Error implements the error interface
func (e *PacklerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *PacklerError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PacklerError) WithContext(key string, value any) *PacklerError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new PacklerError
func New(category ErrorCategory, severity ErrorSeverity, message string) *PacklerError {
	return &PacklerError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new PacklerError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *PacklerError {
	return &PacklerError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapRetryable creates a new retryable PacklerError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *PacklerError {
	return &PacklerError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// As extracts the outermost PacklerError from an error chain.
func As(err error) (*PacklerError, bool) {
	var pe *PacklerError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsCategory checks if an error chain contains a PacklerError of a specific category
func IsCategory(err error, category ErrorCategory) bool {
	var pe *PacklerError
	for err != nil {
		if !stderrors.As(err, &pe) {
			return false
		}
		if pe.Category == category {
			return true
		}
		err = pe.Cause
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if pe, ok := As(err); ok {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a PacklerError
func GetCategory(err error) ErrorCategory {
	if pe, ok := As(err); ok {
		return pe.Category
	}
	return CategoryInternal
}
