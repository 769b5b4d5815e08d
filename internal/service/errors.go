package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInviteNotFound     = errors.New("invite not found or already resolved")
)

func validationError(reason error) error {
	return fmt.Errorf("%w: %w", ErrValidation, reason)
}

func validationErrorf(format string, args ...any) error {
	return validationError(fmt.Errorf(format, args...))
}
