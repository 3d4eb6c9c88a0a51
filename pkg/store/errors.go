package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateID         = errors.New("duplicate id")
	ErrLastPresetProtected = errors.New("the last system message preset cannot be deleted")
	ErrNotApplied          = errors.New("mutation was not applied")
)

// NotFoundError reports a lookup of a chat or preset id that is not in the store.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ErrNotFound.Error()
	}
	return fmt.Sprintf("%s %q %s", e.Kind, e.ID, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateIDError reports an insert with an id that already exists.
type DuplicateIDError struct {
	Kind string
	ID   string
}

func (e *DuplicateIDError) Error() string {
	if e == nil {
		return ErrDuplicateID.Error()
	}
	return fmt.Sprintf("%s %q: %s", e.Kind, e.ID, ErrDuplicateID)
}

func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

func chatNotFound(id string) error   { return &NotFoundError{Kind: "chat", ID: id} }
func presetNotFound(id string) error { return &NotFoundError{Kind: "preset", ID: id} }
