package cordra

import (
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound indicates no object exists under the identifier.
	ErrObjectNotFound = errors.New("object not found")

	// ErrNoSchemas indicates the repository holds no schema objects and
	// therefore cannot accept typed records.
	ErrNoSchemas = errors.New("no schemas found in repository")
)

// RepositoryError wraps a failed HTTP exchange with the repository.
type RepositoryError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *RepositoryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// ObjectError wraps object-level operation failures with context.
type ObjectError struct {
	Op     string
	Target string // object identifier, type, or query depending on Op
	Err    error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Target, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

func (e *ObjectError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewObjectError creates a new object error with context.
func NewObjectError(op, target string, err error) *ObjectError {
	return &ObjectError{Op: op, Target: target, Err: err}
}

// IsObjectNotFound checks if an error indicates a missing object.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
