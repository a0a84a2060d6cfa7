package errors

import (
	"fmt"
)

// ErrNotFound names the missing order (or other keyed resource)
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict is returned when a write collides with existing state (duplicate id, reused idempotency key)
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when a payload is rejected before any write is queued
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// Field records a per-field reason and returns e for chaining.
func (e *ErrValidation) Field(name, reason string) *ErrValidation {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[name] = reason
	return e
}

// HasFields reports whether any field reason was recorded.
func (e *ErrValidation) HasFields() bool {
	return len(e.Fields) > 0
}

// ErrStorage wraps a failed load or persist of the document. Op is "load" or "persist".
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *ErrStorage) Unwrap() error {
	return e.Err
}
