package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrSessionNotFound = errors.New("session not found")
	ErrDuplicateToken  = errors.New("session token already exists")
)

// StorageError reports a failure of the session backend. The limiter never
// retries; callers decide whether the operation is worth repeating.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Invalid wraps ErrValidation with a field-specific message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
