package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeExtraction      = "EXTRACTION_FAILED"
	ErrCodeNotObject       = "NOT_OBJECT"
	ErrCodeMissingType     = "MISSING_TYPE"
	ErrCodeUnsupportedType = "UNSUPPORTED_TYPE"
	ErrCodeSchema          = "SCHEMA_INVALID"
	ErrCodeStructure       = "STRUCTURE_INVALID"
	ErrCodeRender          = "RENDER_FAILED"
	ErrCodeBackend         = "BACKEND_ERROR"
	ErrCodeCircuitOpen     = "CIRCUIT_OPEN"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeStore           = "STORE_ERROR"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeUnavailable     = "UNAVAILABLE"
)

// PipelineError is the structured error type for all pdc operations.
type PipelineError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether a backend call failing with this error may be retried.
func (e *PipelineError) IsRetryable() bool {
	return e.Code == ErrCodeBackend
}

// NewError creates a new PipelineError.
func NewError(code, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// NewErrorf creates a new PipelineError with a formatted message.
func NewErrorf(code, format string, args ...any) *PipelineError {
	return &PipelineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause.
func (e *PipelineError) WithCause(err error) *PipelineError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *PipelineError) WithDetails(details map[string]any) *PipelineError {
	e.Details = details
	return e
}

// ErrorCode returns the code of the first PipelineError in err's chain, or "".
func ErrorCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// HasCode reports whether err carries a PipelineError with the given code.
func HasCode(err error, code string) bool {
	return ErrorCode(err) == code
}
