package argo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWorkflowNotFound indicates the engine has no workflow with the
	// requested name in the given namespace.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowNotReady indicates the workflow has not finished
	// successfully yet and must not be ingested.
	ErrWorkflowNotReady = errors.New("workflow not ready")

	// ErrMalformedStatus indicates a required field is absent from the
	// engine's status response.
	ErrMalformedStatus = errors.New("malformed workflow status")
)

// NotReadyError wraps ErrWorkflowNotReady with the reported phase and the
// names of failing nodes.
type NotReadyError struct {
	Workflow    string
	Phase       string
	FailedNodes []string
}

func (e *NotReadyError) Error() string {
	if len(e.FailedNodes) > 0 {
		return fmt.Sprintf("workflow %s not ready: phase %s, failed nodes: %s",
			e.Workflow, e.Phase, strings.Join(e.FailedNodes, ", "))
	}

	return fmt.Sprintf("workflow %s not ready: phase %s", e.Workflow, e.Phase)
}

func (e *NotReadyError) Unwrap() error {
	return ErrWorkflowNotReady
}

// TransportError wraps a non-success HTTP exchange with the engine. It is
// always fatal to the ingestion run that observes it.
type TransportError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}

	return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowNotReady checks if an error indicates an unfinished workflow.
func IsWorkflowNotReady(err error) bool {
	return errors.Is(err, ErrWorkflowNotReady)
}

// IsMalformedStatus checks if an error indicates a malformed status tree.
func IsMalformedStatus(err error) bool {
	return errors.Is(err, ErrMalformedStatus)
}
