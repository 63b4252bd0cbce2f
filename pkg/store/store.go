// Package store provides the storage abstraction for flow execution history.
package store

import (
	"context"
	"time"

	"github.com/planstudio/flowhistory/pkg/models"
)

// ExecutionStore is the single source of truth for execution records.
//
// The store is append-only for new ids; the only permitted update is the
// in_progress -> terminal status transition. Scan returns a consistent
// snapshot in insertion order: readers never observe a partially applied
// Append or TransitionStatus.
type ExecutionStore interface {
	// Append adds a new record. It fails with ErrDuplicateExecution when the
	// id is already present and ErrInvalidRecord when the record violates
	// the model invariants.
	Append(ctx context.Context, execution *models.FlowExecution) error

	// TransitionStatus moves an in_progress record to a terminal status,
	// applying the patch. It fails with ErrExecutionNotFound for unknown
	// ids and ErrInvalidTransition when the record is already terminal or
	// the target status is not terminal. The updated record is returned.
	TransitionStatus(ctx context.Context, id string, status models.ExecutionStatus, patch models.StatusPatch) (*models.FlowExecution, error)

	// Get returns the record with the given id, or ErrExecutionNotFound.
	Get(ctx context.Context, id string) (*models.FlowExecution, error)

	// Scan returns a snapshot of all records in insertion order.
	Scan(ctx context.Context) ([]*models.FlowExecution, error)

	// PruneBefore evicts records whose timestamp is before cutoff and
	// returns how many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
