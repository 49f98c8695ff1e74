package engine

import (
	"errors"
	"fmt"
)

// ErrCatalogUnavailable matches every CatalogError.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// ErrInvalidAnswer indicates a malformed answer payload. Nothing is mutated.
var ErrInvalidAnswer = errors.New("invalid answer")

// ErrSessionClosed indicates the session no longer accepts questions or answers.
var ErrSessionClosed = errors.New("session closed")

// CatalogError reports a failed catalog read.
type CatalogError struct {
	Op  string
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog unavailable: %s: %v", e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

func (e *CatalogError) Is(target error) bool { return target == ErrCatalogUnavailable }

func catalogErr(op string, err error) error {
	return &CatalogError{Op: op, Err: err}
}

// UpdateError reports a weight update that was discarded. It is returned
// in Report.Err, never as a failure of the caller's operation.
type UpdateError struct {
	QuestionID int
	Policy     string
	Err        error
}

func (e *UpdateError) Error() string {
	if e.Policy == "" {
		return fmt.Sprintf("update for question %d discarded: %v", e.QuestionID, e.Err)
	}
	return fmt.Sprintf("update for question %d discarded by %s: %v", e.QuestionID, e.Policy, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }
