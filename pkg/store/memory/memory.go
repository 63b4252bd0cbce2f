// Package memory provides the in-memory execution store implementation.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/planstudio/flowhistory/pkg/models"
	"github.com/planstudio/flowhistory/pkg/store"
)

// Store holds execution records in memory behind a reader-writer lock.
// Writers serialize with each other and with retention eviction; readers
// only block for the duration of the snapshot copy.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*models.FlowExecution
	order []string // insertion order, oldest first

	maxRecords int
	maxAge     time.Duration
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxRecords bounds the store to at most n records; older records are
// evicted first. Zero means unbounded.
func WithMaxRecords(n int) Option {
	return func(s *Store) {
		s.maxRecords = n
	}
}

// WithMaxAge evicts records older than age on every write. Zero means
// unbounded.
func WithMaxAge(age time.Duration) Option {
	return func(s *Store) {
		s.maxAge = age
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty in-memory execution store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		byID: make(map[string]*models.FlowExecution),
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Append adds a new record, rejecting duplicates and invalid records.
func (s *Store) Append(_ context.Context, execution *models.FlowExecution) error {
	if execution == nil {
		return store.NewExecutionError("Append", "", store.ErrInvalidRecord)
	}

	if err := execution.Validate(); err != nil {
		return store.NewExecutionError("Append", execution.ID, fmt.Errorf("%w: %w", store.ErrInvalidRecord, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[execution.ID]; exists {
		return store.NewExecutionError("Append", execution.ID, store.ErrDuplicateExecution)
	}

	s.byID[execution.ID] = execution.Clone()
	s.order = append(s.order, execution.ID)

	s.evictLocked()

	return nil
}

// TransitionStatus applies the single permitted mutation: in_progress to a
// terminal status. Identity fields never change.
func (s *Store) TransitionStatus(_ context.Context, id string, status models.ExecutionStatus, patch models.StatusPatch) (*models.FlowExecution, error) {
	if !status.IsTerminal() {
		return nil, store.NewExecutionError("TransitionStatus", id,
			fmt.Errorf("%w: target status %q is not terminal", store.ErrInvalidTransition, status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.byID[id]
	if !exists {
		return nil, store.NewExecutionError("TransitionStatus", id, store.ErrExecutionNotFound)
	}

	if current.Status != models.ExecutionStatusInProgress {
		return nil, store.NewExecutionError("TransitionStatus", id,
			fmt.Errorf("%w: execution is already %s", store.ErrInvalidTransition, current.Status))
	}

	updated := current.Clone()
	updated.Status = status

	if patch.DurationMS != nil {
		updated.DurationMS = *patch.DurationMS
	}

	if patch.StepsCompleted != nil {
		updated.StepsCompleted = *patch.StepsCompleted
	}

	if patch.Error != nil {
		updated.Error = patch.Error
	}

	if len(patch.Logs) > 0 {
		updated.Logs = append(updated.Logs, patch.Logs...)
	}

	if len(patch.Steps) > 0 {
		updated.Steps = append(updated.Steps, patch.Steps...)
	}

	if patch.OutputPayload != nil {
		updated.OutputPayload = patch.OutputPayload
	}

	if err := updated.Validate(); err != nil {
		return nil, store.NewExecutionError("TransitionStatus", id, fmt.Errorf("%w: %w", store.ErrInvalidRecord, err))
	}

	// Publish atomically: the stored record is swapped in one assignment.
	s.byID[id] = updated

	return updated.Clone(), nil
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(_ context.Context, id string) (*models.FlowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	execution, exists := s.byID[id]
	if !exists {
		return nil, store.NewExecutionError("Get", id, store.ErrExecutionNotFound)
	}

	return execution.Clone(), nil
}

// Scan returns a snapshot of all records in insertion order. The snapshot is
// isolated from later writes.
func (s *Store) Scan(_ context.Context) ([]*models.FlowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]*models.FlowExecution, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.byID[id].Clone())
	}

	return snapshot, nil
}

// PruneBefore evicts records with a timestamp before cutoff.
func (s *Store) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	pruned := 0

	for _, id := range s.order {
		if s.byID[id].Timestamp.Before(cutoff) {
			delete(s.byID, id)
			pruned++

			continue
		}

		kept = append(kept, id)
	}

	s.order = kept

	return pruned, nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

// evictLocked enforces the retention bounds, oldest records first.
// Caller must hold the write lock.
func (s *Store) evictLocked() {
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		kept := s.order[:0]

		for _, id := range s.order {
			if s.byID[id].Timestamp.Before(cutoff) {
				delete(s.byID, id)

				continue
			}

			kept = append(kept, id)
		}

		s.order = kept
	}

	if s.maxRecords > 0 && len(s.order) > s.maxRecords {
		excess := len(s.order) - s.maxRecords
		for _, id := range s.order[:excess] {
			delete(s.byID, id)
		}

		s.order = append(s.order[:0], s.order[excess:]...)
	}
}

var _ store.ExecutionStore = (*Store)(nil)
