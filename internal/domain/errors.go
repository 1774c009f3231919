package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("inventory: not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must not be negative")
	ErrUnknownProduct    = errors.New("inventory: unknown product")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// ValidationError reports input that was rejected before any state changed.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
