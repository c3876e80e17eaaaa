package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decimalTestStruct struct {
	Account string `validate:"required,max=100"`
	Amount  string `validate:"omitempty,decimal"`
}

func TestValidator_DecimalValidation(t *testing.T) {
	InitValidator()
	v := GetValidator()

	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"plain integer", "1000", false},
		{"single digit", "7", false},
		{"empty allowed when optional", "", false},
		{"full uint256 width", strings.Repeat("9", 78), false},

		{"over column width", strings.Repeat("9", 79), true},
		{"negative sign", "-5", true},
		{"decimal point", "1.5", true},
		{"hex digits", "0x1f", true},
		{"embedded letter", "12x4", true},
		{"whitespace", " 100", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(decimalTestStruct{Account: "alice", Amount: tt.amount})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_AccountValidation(t *testing.T) {
	InitValidator()
	v := GetValidator()

	t.Run("missing account", func(t *testing.T) {
		err := v.ValidateStruct(decimalTestStruct{Amount: "10"})
		require.Error(t, err)

		fields := FormatValidationError(err)
		assert.Equal(t, "This field is required", fields["account"])
	})

	t.Run("account too long", func(t *testing.T) {
		err := v.ValidateStruct(decimalTestStruct{Account: strings.Repeat("a", 101)})
		require.Error(t, err)

		fields := FormatValidationError(err)
		assert.Contains(t, fields["account"], "at most 100")
	})
}

func TestFormatValidationError_NonValidatorError(t *testing.T) {
	fields := FormatValidationError(assert.AnError)
	assert.Equal(t, "Invalid request format", fields["error"])
}
