// Package persistence provides standardized error types for run store operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrRunNotFound indicates an ingestion run was not found by the given identifier.
	ErrRunNotFound = errors.New("ingestion run not found")

	// ErrRunAlreadyExists indicates a run with the same identifier already exists.
	ErrRunAlreadyExists = errors.New("ingestion run already exists")
)

// RunError wraps run-store errors with additional context.
type RunError struct {
	Op    string // Operation being performed (e.g., "Save", "GetByID", "List")
	RunID string // Run ID if applicable
	Err   error  // Underlying error
}

func (e *RunError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
	}

	return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for run errors.
func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunError creates a new run error with context.
func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}
