package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredErrorsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "validation", err: Invalid("amount", "must be positive"), sentinel: ErrValidation},
		{name: "invalid state", err: &InvalidStateError{Entity: "redeem request", ID: "r1", State: "paid", Op: "resolve"}, sentinel: ErrInvalidState},
		{name: "not found", err: NotFound("photographer", "p1"), sentinel: ErrNotFound},
		{name: "allocation", err: &AllocationError{Kind: "order id", Attempts: 3, Err: ErrConflict}, sentinel: ErrAllocationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestAllocationErrorKeepsCause(t *testing.T) {
	err := &AllocationError{Kind: "photographer id", Attempts: 4, Err: ErrConflict}

	assert.ErrorIs(t, err, ErrConflict)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "4 attempts")
}

func TestValidationErrorDetails(t *testing.T) {
	err := fmt.Errorf("submit: %w", Invalid("ifsc", "is required"))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "ifsc", ve.Field)
	assert.Equal(t, "ifsc: is required", ve.Error())
	assert.True(t, IsClientError(err))
}

func TestIsClientErrorRejectsUnknown(t *testing.T) {
	assert.False(t, IsClientError(errors.New("boom")))
	assert.False(t, IsClientError(&AllocationError{Kind: "order id", Err: ErrConflict}))
}
