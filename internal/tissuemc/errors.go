package tissuemc

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks input rejected before any photon is simulated.
	ErrConfiguration = errors.New("configuration error")
	// ErrIO marks database or output failures.
	ErrIO = errors.New("i/o error")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrConfiguration }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func ioError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
