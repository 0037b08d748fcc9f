package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrors_UnwrapToAPIError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		category string
	}{
		{"not found", NewNotFoundError(EntityBook, "b1"), ErrCodeBookNotFound, CategoryNotFound},
		{"loan not found", NewLoanNotFoundError("l1"), ErrCodeLoanNotFound, CategoryNotFound},
		{"validation", NewValidationError("email", "invalid"), ErrCodeValidationFailed, CategoryValidation},
		{"unavailable", NewBookUnavailableError("b1"), ErrCodeBookUnavailable, CategoryBusinessRule},
		{"limit", NewLoanLimitExceededError("u1", 5), ErrCodeLoanLimitExceeded, CategoryBusinessRule},
		{"age", NewAgeTooLowError(10, 12), ErrCodeAgeTooLow, CategoryBusinessRule},
		{"returned", NewLoanAlreadyReturnedError("l1"), ErrCodeLoanAlreadyReturned, CategoryBusinessRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)

			var apiErr *APIError
			require.True(t, errors.As(wrapped, &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.category, apiErr.Category)
		})
	}
}

func TestTypedErrors_CarryFields(t *testing.T) {
	var limitErr *LoanLimitExceededError
	require.True(t, errors.As(fmt.Errorf("x: %w", NewLoanLimitExceededError("u1", 5)), &limitErr))
	assert.Equal(t, "u1", limitErr.UserID)
	assert.Equal(t, 5, limitErr.Max)

	var ageErr *AgeTooLowError
	require.True(t, errors.As(NewAgeTooLowError(11, 12), &ageErr))
	assert.Equal(t, 11, ageErr.Age)
	assert.Equal(t, 12, ageErr.Minimum)

	var nf *NotFoundError
	require.True(t, errors.As(NewNotFoundError(EntityUser, "u9"), &nf))
	assert.Equal(t, EntityUser, nf.Entity)
	assert.Equal(t, "u9", nf.ID)
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError(EntityAuthor, "a")))
	assert.True(t, IsValidation(NewValidationError("f", "r")))
	assert.True(t, IsBusinessRuleViolation(NewAgeTooLowError(1, 12)))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsBusinessRuleViolation(NewNotFoundError(EntityBook, "b")))
}
