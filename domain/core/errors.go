package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors, all detected before any statistic is computed
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInsufficientData = fmt.Errorf("%w: insufficient data for analysis", ErrInvalidParameter)
	ErrMissingColumn    = errors.New("missing column or data")

	// Storage errors
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)
)

// Error constructors with context
func NewParameterError(field string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidParameter, field, reason)
}

func NewInsufficientDataError(n int) error {
	return fmt.Errorf("%w: need at least 2 observations, got %d", ErrInsufficientData, n)
}

func NewMissingColumnError(column string, reason string) error {
	return fmt.Errorf("%w: column %q %s", ErrMissingColumn, column, reason)
}

// Error checking helpers
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidParameter) || errors.Is(err, ErrMissingColumn)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
