package auth

import "errors"

// Identity errors
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
	ErrNoEmail      = errors.New("token carries no email claim")
)
