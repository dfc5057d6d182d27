package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrProviderMismatch   = errors.New("auth: account registered with a different provider")
	ErrEmailClaimMissing  = errors.New("auth: token carries no email claim")
	ErrUserInactive       = errors.New("auth: user is inactive")
)
