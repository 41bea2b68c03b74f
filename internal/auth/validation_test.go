package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		email string
		want  string
		err   error
	}{
		{"simple", "alice@example.com", "alice@example.com", nil},
		{"lowercased", "Alice@Example.COM", "alice@example.com", nil},
		{"plus tag", "alice+chat@example.com", "alice+chat@example.com", nil},
		{"missing at", "aliceexample.com", "", ErrInvalidEmail},
		{"missing domain", "alice@", "", ErrInvalidEmail},
		{"empty", "", "", ErrInvalidEmail},
		{"too long", strings.Repeat("a", 250) + "@example.com", "", ErrInvalidEmail},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ValidateEmail(tt.email)
			if !errors.Is(err, tt.err) {
				t.Fatalf("ValidateEmail(%q) error = %v, want %v", tt.email, err, tt.err)
			}
			if got != tt.want {
				t.Errorf("ValidateEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		username string
		err      error
	}{
		{"bob", nil},
		{strings.Repeat("x", 32), nil},
		{"ab", ErrUsernameLength},
		{strings.Repeat("x", 33), ErrUsernameLength},
		{"", ErrUsernameLength},
		// Runes, not bytes.
		{"äöü", nil},
	}

	for _, tt := range tests {
		tt := tt
		if err := ValidateUsername(tt.username); !errors.Is(err, tt.err) {
			t.Errorf("ValidateUsername(%q) error = %v, want %v", tt.username, err, tt.err)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		password string
		err      error
	}{
		{"12345678", nil},
		{strings.Repeat("x", 64), nil},
		{"1234567", ErrPasswordLength},
		{strings.Repeat("x", 65), ErrPasswordLength},
		{"", ErrPasswordLength},
	}

	for _, tt := range tests {
		tt := tt
		if err := ValidatePassword(tt.password); !errors.Is(err, tt.err) {
			t.Errorf("ValidatePassword(%q) error = %v, want %v", tt.password, err, tt.err)
		}
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	match, err := VerifyPassword("correct horse battery", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if !match {
		t.Error("correct password did not match")
	}

	match, err = VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if match {
		t.Error("wrong password matched")
	}
}
