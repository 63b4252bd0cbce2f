package store

import (
	"errors"
	"fmt"
)

// Standard store error types that all implementations should use.
var (
	// ErrExecutionNotFound indicates no record exists for the given id.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrDuplicateExecution indicates an Append with an id already present.
	ErrDuplicateExecution = errors.New("execution already exists")

	// ErrInvalidTransition indicates a status update on an already-terminal
	// record, or an update to a non-terminal target status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidRecord indicates a record that violates the model invariants.
	ErrInvalidRecord = errors.New("invalid execution record")
)

// ExecutionError wraps store errors with operation context.
type ExecutionError struct {
	Op          string // Operation being performed (e.g. "Append", "TransitionStatus")
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	if e.ExecutionID == "" {
		return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a store error with operation context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// IsExecutionNotFound checks if an error indicates a missing record.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsDuplicateExecution checks if an error indicates a duplicate id.
func IsDuplicateExecution(err error) bool {
	return errors.Is(err, ErrDuplicateExecution)
}

// IsInvalidTransition checks if an error indicates a rejected status change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsInvalidRecord checks if an error indicates a record failing validation.
func IsInvalidRecord(err error) bool {
	return errors.Is(err, ErrInvalidRecord)
}
