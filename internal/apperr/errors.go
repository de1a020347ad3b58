// Package apperr defines the error taxonomy shared by the service, API, and client layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrAlreadyExists   = errors.New("already exists")
	// ErrTransient marks storage or network unavailability. Callers may retry.
	ErrTransient = errors.New("temporarily unavailable")
)

// Validation wraps err (typically ozzo-validation field errors) under ErrValidation.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Transient wraps err under ErrTransient with an operation label.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// IsRetryable reports whether err is safe to retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
