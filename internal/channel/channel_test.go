package channel

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		err   error
	}{
		{"abcd", nil},
		{strings.Repeat("x", 32), nil},
		{"abc", ErrNameLength},
		{strings.Repeat("x", 33), ErrNameLength},
		{"", ErrNameLength},
		// Names are not trimmed; surrounding spaces count.
		{" ab ", nil},
	}

	for _, tt := range tests {
		if err := ValidateName(tt.input); !errors.Is(err, tt.err) {
			t.Errorf("ValidateName(%q) error = %v, want %v", tt.input, err, tt.err)
		}
	}
}
