package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrSyncInProgress", ErrSyncInProgress},
		{"ErrConfigIncomplete", ErrConfigIncomplete},
		{"ErrAuthenticationFailed", ErrAuthenticationFailed},
		{"ErrProtocol", ErrProtocol},
		{"ErrValidation", ErrValidation},
		{"ErrSubmission", ErrSubmission},
		{"ErrNoDirectory", ErrNoDirectory},
		{"ErrOrganizationNotSet", ErrOrganizationNotSet},
		{"ErrUnknownStateVersion", ErrUnknownStateVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrors_Distinct tests that taxonomy errors do not match each other
func TestErrors_Distinct(t *testing.T) {
	taxonomy := []error{ErrConfigIncomplete, ErrAuthenticationFailed, ErrProtocol, ErrValidation, ErrSubmission}
	for i, a := range taxonomy {
		for j, b := range taxonomy {
			assert.Equal(t, i == j, errors.Is(a, b), "%v vs %v", a, b)
		}
	}
}

// TestErrors_Wrapping tests that wrapped errors are still recognised
func TestErrors_Wrapping(t *testing.T) {
	err := fmt.Errorf("okta users: %w", ErrProtocol)
	assert.True(t, errors.Is(err, ErrProtocol))
	assert.False(t, errors.Is(err, ErrAuthenticationFailed))
	assert.Equal(t, "okta users: directory protocol error", err.Error())
}
