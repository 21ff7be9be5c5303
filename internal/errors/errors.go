package errors

import (
	"errors"
	"fmt"
)

// Common error types for the token service
var (
	// Input errors
	ErrMissingInput = errors.New("missing required input")

	// Identity source errors
	ErrUpstreamIdentity = errors.New("identity provider rejected or failed")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")

	// Key material errors (fatal, startup-only)
	ErrKeyMaterial = errors.New("key material unavailable")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
