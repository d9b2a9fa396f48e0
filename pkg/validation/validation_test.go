package validation_test

import (
	"civic/pkg/serrors"
	"civic/pkg/validation"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,password,maxbytes=72"`
	Nickname string `validate:"omitempty,max=5"`
}

func TestValidator_Validate(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name    string
		input   signup
		message string
	}{
		{
			name:  "valid",
			input: signup{Email: "a@example.com", Password: "Secret123"},
		},
		{
			name:    "missing fields use json names",
			input:   signup{},
			message: "validation failed: email is required; password is required",
		},
		{
			name:    "weak password",
			input:   signup{Email: "a@example.com", Password: "secret123"},
			message: "validation failed: password must have at least 8 characters including an upper case letter, a lower case letter and a digit", //nolint: lll
		},
		{
			name:    "short password",
			input:   signup{Email: "a@example.com", Password: "Se1"},
			message: "validation failed: password must have at least 8 characters including an upper case letter, a lower case letter and a digit", //nolint: lll
		},
		{
			name:    "password longer than 72 bytes",
			input:   signup{Email: "a@example.com", Password: "Secret123" + strings.Repeat("é", 32)},
			message: "validation failed: password must not exceed 72 bytes",
		},
		{
			name:  "password of exactly 72 bytes",
			input: signup{Email: "a@example.com", Password: "Secret12" + strings.Repeat("é", 32)},
		},
		{
			name:    "invalid email and field without json tag",
			input:   signup{Email: "nope", Password: "Secret123", Nickname: "toolong"},
			message: "validation failed: Nickname must not exceed 5 characters; email must be a valid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.message == "" {
				require.NoError(t, err)

				return
			}
			require.ErrorIs(t, err, serrors.ErrBadRequest)
			require.EqualError(t, err, tt.message)
		})
	}
}
