package service

import (
	"fmt"

	"example.com/backstage/services/skip/internal/model"
)

// NotFoundError signals an unknown scan code or record id
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// PreconditionError signals a command issued while the skip is in the wrong
// status. The message names the required state so callers can surface it.
type PreconditionError struct {
	Command  model.MovementType
	Required string
	Actual   model.SkipStatus
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s requires skip to be %s (current status: %s)", e.Command, e.Required, e.Actual)
}

// ValidationError signals insufficient or malformed command inputs
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// PersistenceError signals a transaction failure. The whole command rolled
// back, so retrying it is safe.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
