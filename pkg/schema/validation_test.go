package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_ErrorsAndWarnings(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())

	r.AddWarning("platform_labels", ErrCodeValidation, "expected 3-5 items")
	assert.True(t, r.Valid(), "warnings alone keep the spec valid")

	r.AddError("/nodes/0/id", ErrCodeSchema, "missing property 'id'")
	assert.False(t, r.Valid())

	require.Len(t, r.Errors, 1)
	assert.Equal(t, ValidationIssue{Path: "/nodes/0/id", Code: ErrCodeSchema, Message: "missing property 'id'"}, r.Errors[0])
	assert.Equal(t, "/nodes/0/id: missing property 'id'", r.Errors[0].String())
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "/platform_labels", r.Warnings[0].Path)
}

func TestValidationResult_RootPointer(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("", ErrCodeNotObject, "not an object")
	r.AddError("  ", ErrCodeNotObject, "not an object")
	assert.Equal(t, "/", r.Errors[0].Path)
	assert.Equal(t, "/", r.Errors[1].Path)
}

func TestValidationResult_Merge(t *testing.T) {
	r1 := &ValidationResult{}
	r1.AddError("/", ErrCodeSchema, "err1")
	r1.AddWarning("/", ErrCodeValidation, "warn1")

	r2 := &ValidationResult{}
	r2.AddError("/edges/0", ErrCodeSchema, "err2")
	r2.AddWarning("/edges/1", ErrCodeValidation, "warn2")

	r1.Merge(r2)
	r1.Merge(nil)

	require.Len(t, r1.Errors, 2)
	assert.Equal(t, "err2", r1.Errors[1].Message)
	assert.Len(t, r1.Warnings, 2)
}

func TestErrorCode(t *testing.T) {
	err := NewError(ErrCodeExtraction, "no JSON object found")
	assert.Equal(t, ErrCodeExtraction, ErrorCode(err))
	assert.True(t, HasCode(err, ErrCodeExtraction))
	assert.Equal(t, "[EXTRACTION_FAILED] no JSON object found", err.Error())
	assert.Equal(t, "", ErrorCode(assert.AnError))
}

func TestPipelineError_IsRetryable(t *testing.T) {
	assert.True(t, NewError(ErrCodeBackend, "502").IsRetryable())
	assert.False(t, NewError(ErrCodeSchema, "bad").IsRetryable())
}
