package errors

import (
	"fmt"
)

// SRError is the structured error type for servicereport.
type SRError struct {
	// Code is the unique error code (e.g., "ERR_303_EDIT_REPLACE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Host, Edit, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *SRError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SRError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works against sentinel values.
func (e *SRError) Is(target error) bool {
	if t, ok := target.(*SRError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *SRError) WithDetail(key, value string) *SRError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the operator.
func (e *SRError) WithSuggestion(suggestion string) *SRError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SRError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *SRError {
	return &SRError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an SRError from an existing error.
func Wrap(code string, err error) *SRError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SRError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// CommandError creates an error for an external command that failed.
func CommandError(command string, cause error) *SRError {
	return New(ErrCodeCommandFailed, "command failed: "+command, cause).
		WithDetail("command", command)
}

// EditError creates a file edit error for path.
func EditError(code, path string, cause error) *SRError {
	return New(code, "edit of "+path+" failed", cause).WithDetail("path", path)
}

// PluginError creates a plugin-related error.
func PluginError(code, plugin, message string, cause error) *SRError {
	return New(code, message, cause).WithDetail("plugin", plugin)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SRError {
	return New(ErrCodeInternal, message, cause)
}

// IsCritical reports whether err is an SRError with critical severity.
func IsCritical(err error) bool {
	if se, ok := err.(*SRError); ok {
		return se.Severity == SeverityCritical
	}
	return false
}

// GetCode extracts the error code from an SRError.
// Returns empty string if not an SRError.
func GetCode(err error) string {
	if se, ok := err.(*SRError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from an SRError.
func GetCategory(err error) Category {
	if se, ok := err.(*SRError); ok {
		return se.Category
	}
	return ""
}
