package service

import (
	"errors"
	"fmt"
)

var (
	ErrPersistenceFailed     = errors.New("persistence failed")
	ErrStateDiverged         = errors.New("local and server state have diverged")
	ErrSendInProgress        = errors.New("a message is already being sent in this chat")
	ErrEmptyMessage          = errors.New("message is empty")
	ErrNoCurrentChat         = errors.New("no chat is selected")
	ErrCompletionUnavailable = errors.New("completions are not available")
	ErrValidation            = errors.New("validation error")
)

// PersistenceFailedError is returned when the server rejected an operation
// whose optimistic change has been reverted. Err is set when the revert
// itself failed.
type PersistenceFailedError struct {
	Op  string
	Err error
}

func (e *PersistenceFailedError) Error() string {
	if e == nil {
		return ErrPersistenceFailed.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (revert failed: %v)", e.Op, ErrPersistenceFailed, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, ErrPersistenceFailed)
}

func (e *PersistenceFailedError) Is(target error) bool { return target == ErrPersistenceFailed }

func (e *PersistenceFailedError) Unwrap() error { return e.Err }

// ValidationError reports invalid user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
