// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// ErrInvalidFilter covers malformed filter specifications: a date range
	// with from after to, or an unknown status value.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidPagination covers page or page size below 1.
	ErrInvalidPagination = errors.New("invalid pagination")

	// ErrInvalidTopK covers negative cluster/ranking sizes.
	ErrInvalidTopK = errors.New("top k must not be negative")

	// ErrInvalidWindow covers negative time-series windows.
	ErrInvalidWindow = errors.New("window days must not be negative")

	// ErrInvalidAlertRule covers rules with unknown types or bad thresholds.
	ErrInvalidAlertRule = errors.New("invalid alert rule")

	// ErrCanceled is returned when a query observes caller cancellation.
	ErrCanceled = errors.New("operation canceled")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a service error for a rejected request.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidFilter) ||
		errors.Is(err, ErrInvalidPagination) ||
		errors.Is(err, ErrInvalidTopK) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidAlertRule)
}

// IsCanceled checks if an error indicates caller cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}
