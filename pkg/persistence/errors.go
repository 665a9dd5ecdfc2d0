// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRouteNotFound indicates no route exists for the given identifier or pair.
	ErrRouteNotFound = errors.New("route not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrAnalyticsNotFound indicates no analytics aggregate exists for the workflow.
	ErrAnalyticsNotFound = errors.New("analytics not found")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op     string // Operation being performed (e.g., "WorkflowByID", "SaveRoute")
	Entity string // Entity identifier if applicable
	Err    error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Entity, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a storage error with context.
func NewStoreError(op, entity string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, Err: err}
}

// IsWorkflowNotFound checks whether err means a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsRouteNotFound checks whether err means a missing route.
func IsRouteNotFound(err error) bool {
	return errors.Is(err, ErrRouteNotFound)
}

// IsExecutionNotFound checks whether err means a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsAnalyticsNotFound checks whether err means a missing analytics aggregate.
func IsAnalyticsNotFound(err error) bool {
	return errors.Is(err, ErrAnalyticsNotFound)
}
