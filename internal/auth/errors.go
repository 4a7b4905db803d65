package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrAlreadyExists      = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	// ErrTokenReused marks a refresh token that no longer matches the stored
	// current value: it was rotated away (or the account was re-logged-in)
	// and is being replayed.
	ErrTokenReused = errors.New("auth: refresh token reused")
	ErrUnavailable = errors.New("auth: upstream unavailable")
)
