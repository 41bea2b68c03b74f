package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const maxEmailLength = 254

// ValidateEmail parses and normalises an email address. Returns
// ErrInvalidEmail if the format is invalid or the address exceeds the
// RFC 5321 maximum of 254 characters.
func ValidateEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", ErrInvalidEmail
	}

	normalised := strings.ToLower(addr.Address)
	if len(normalised) > maxEmailLength {
		return "", ErrInvalidEmail
	}

	return normalised, nil
}

// ValidateUsername checks that a username is 3 to 32 characters (runes).
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 32 {
		return ErrUsernameLength
	}
	return nil
}

// ValidatePassword checks that a password is 8 to 64 characters.
func ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > 64 {
		return ErrPasswordLength
	}
	return nil
}
