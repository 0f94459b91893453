// Package services holds the business rules that sit between the HTTP
// layer and persistence: definition validation, lifecycle guards and the
// error taxonomy handlers map to status codes.
package services

import (
	"errors"
	"fmt"
)

// Validation errors map to 400 responses.
var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrWorkflowNameRequired  = errors.New("workflow name is required")
	ErrNodesRequired         = errors.New("workflow must have at least one node")
	ErrTriggerNodeRequired   = errors.New("workflow must have a trigger node")
	ErrDomainNameRequired    = errors.New("domain name is required")
	ErrScheduleStepsRequired = errors.New("warming schedule must have at least one step")
)

// Conflict errors map to 409 responses: the request is well-formed but
// the resource is in a state that forbids it.
var (
	ErrExecutionTerminal = errors.New("execution already finished")
	ErrDomainNotVerified = errors.New("domain must be verified before warming")
	ErrAlreadyWarming    = errors.New("domain is already warming")
	ErrNotWarming        = errors.New("domain is not warming")
	ErrDomainHasTraffic  = errors.New("cannot delete a domain that is sending")
)

// ServiceError carries the failing operation alongside the sentinel.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newServiceError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Err: err}
}

// IsValidationError reports whether err should surface as HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrTriggerNodeRequired) ||
		errors.Is(err, ErrDomainNameRequired) ||
		errors.Is(err, ErrScheduleStepsRequired)
}

// IsConflictError reports whether err should surface as HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrExecutionTerminal) ||
		errors.Is(err, ErrDomainNotVerified) ||
		errors.Is(err, ErrAlreadyWarming) ||
		errors.Is(err, ErrNotWarming) ||
		errors.Is(err, ErrDomainHasTraffic)
}
