package auth

import "errors"

// Sentinel errors for credential validation and token handling.
var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrUsernameLength     = errors.New("username must be between 3 and 32 characters")
	ErrPasswordLength     = errors.New("password must be between 8 and 64 characters")
	ErrInvalidToken       = errors.New("invalid bearer token")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
