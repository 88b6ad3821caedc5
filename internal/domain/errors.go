package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication required")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal error")
)

// ValidationError describes bad input with a machine-readable reason.
type ValidationError struct {
	Reason  string
	Message string
}

func NewValidationError(reason, message string) *ValidationError {
	return &ValidationError{Reason: reason, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func WrapInternal(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, context, err)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
