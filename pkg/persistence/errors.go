// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow definition was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrDomainNotFound indicates a sending domain was not found.
	ErrDomainNotFound = errors.New("sending domain not found")

	// ErrScheduleNotFound indicates a warming schedule was not found.
	ErrScheduleNotFound = errors.New("warming schedule not found")

	// ErrProgressNotFound indicates no warming progress row exists for the
	// requested domain and day.
	ErrProgressNotFound = errors.New("warming progress not found")

	// ErrStatsNotFound indicates no telemetry aggregate exists for the
	// requested domain and date.
	ErrStatsNotFound = errors.New("daily stats not found")
)

// ExecutionError wraps execution-related errors with operation context.
type ExecutionError struct {
	Op          string // Operation being performed (e.g. "RecordStep", "Save")
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// DomainError wraps domain-related errors with operation context.
type DomainError struct {
	Op       string
	DomainID string
	Err      error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s operation failed for domain %s: %v", e.Op, e.DomainID, e.Err)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDomainError creates a new domain error with context.
func NewDomainError(op, domainID string, err error) *DomainError {
	return &DomainError{Op: op, DomainID: domainID, Err: err}
}

// IsNotFound checks whether an error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrDomainNotFound) ||
		errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrProgressNotFound) ||
		errors.Is(err, ErrStatsNotFound)
}
