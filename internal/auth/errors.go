package auth

import (
	"errors"
	"fmt"
)

// ErrValidation is the parent of every input error; callers may match either
var ErrValidation = errors.New("validation failed")

var (
	ErrNameRequired       = fmt.Errorf("%w: name is required", ErrValidation)
	ErrEmailRequired      = fmt.Errorf("%w: email is required", ErrValidation)
	ErrPasswordRequired   = fmt.Errorf("%w: password is required", ErrValidation)
	ErrCodeRequired       = fmt.Errorf("%w: otp is required", ErrValidation)
	ErrInvalidEmailFormat = fmt.Errorf("%w: invalid email format", ErrValidation)
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidOTP         = errors.New("invalid or expired otp")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid password")
	ErrNotificationFailed = errors.New("failed to deliver otp")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// unavailable tags an unexpected store failure while keeping the cause reachable
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
