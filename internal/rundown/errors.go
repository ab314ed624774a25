package rundown

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a mutation names an unknown entry.
	ErrNotFound = errors.New("entry not found")
	// ErrCircularGroup is wrapped by a DataIntegrityError when a group
	// would end up inside itself.
	ErrCircularGroup = errors.New("circular group membership")
)

// DataIntegrityError means the rundown structure is incoherent. It is fatal
// to the call that produced it and the rundown is left untouched.
type DataIntegrityError struct {
	ID     string
	Reason string
	Err    error
}

func (e *DataIntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data integrity error on %q: %s: %v", e.ID, e.Reason, e.Err)
	}
	return fmt.Sprintf("data integrity error on %q: %s", e.ID, e.Reason)
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

// ValidationError rejects a mutation before anything is changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func integrity(id, reason string) error {
	return &DataIntegrityError{ID: id, Reason: reason}
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
