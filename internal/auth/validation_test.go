package auth

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr error
	}{
		{"ana@x.com", nil},
		{"first.last+tag@example.co.uk", nil},
		{"", ErrEmailRequired},
		{"   ", ErrEmailRequired},
		{"no-at-sign", ErrEmailInvalid},
		{"ana@x", ErrEmailInvalid},
		{"@x.com", ErrEmailInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, ValidateEmail(tt.email))
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Ana"))
	assert.Equal(t, ErrNameRequired, ValidateName(""))
	assert.Equal(t, ErrNameRequired, ValidateName("  \t"))
	assert.Equal(t, ErrNameTooLong, ValidateName(strings.Repeat("a", 101)))
}

func TestValidateRegistration(t *testing.T) {
	assert.NoError(t, ValidateRegistration("Ana", "ana@x.com", "pw1"))
	assert.Equal(t, ErrNameRequired, ValidateRegistration("", "ana@x.com", "pw1"))
	assert.Equal(t, ErrEmailInvalid, ValidateRegistration("Ana", "ana", "pw1"))
	assert.Equal(t, ErrPasswordRequired, ValidateRegistration("Ana", "ana@x.com", ""))
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(ErrEmailInvalid))
	assert.True(t, IsValidationError(fmt.Errorf("register: %w", ErrPasswordTooLong)))
	assert.False(t, IsValidationError(ErrInvalidPassword))
	assert.False(t, IsValidationError(nil))
}
