// Package file provides a file-based execution store implementation.
//
// Each record lives in its own JSON file under <root>/executions, wrapped in
// an envelope carrying the insertion sequence number so scans can reproduce
// insertion order across restarts.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/planstudio/flowhistory/pkg/models"
	"github.com/planstudio/flowhistory/pkg/store"
)

type envelope struct {
	Seq       uint64                `json:"seq"`
	Execution *models.FlowExecution `json:"execution"`
}

// Store persists execution records on the file system.
type Store struct {
	root string

	mu      sync.RWMutex
	nextSeq uint64
}

// NewStore creates a file-based execution store rooted at root. A "file://"
// prefix on root is accepted and stripped.
func NewStore(root string) (*Store, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	s := &Store{root: cleanRoot}

	if err := os.MkdirAll(s.executionsDir(), 0750); err != nil {
		return nil, fmt.Errorf("failed to create executions directory: %w", err)
	}

	envelopes, err := s.readAll()
	if err != nil {
		return nil, err
	}

	for _, env := range envelopes {
		if env.Seq >= s.nextSeq {
			s.nextSeq = env.Seq + 1
		}
	}

	return s, nil
}

func (s *Store) executionsDir() string {
	return filepath.Join(s.root, "executions")
}

// validateID guards file paths against traversal through record ids.
func validateID(id string) error {
	if id == "" {
		return errors.New("execution ID cannot be empty")
	}

	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return errors.New("execution ID contains invalid characters")
	}

	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.executionsDir(), id+".json")
}

// Append adds a new record, rejecting duplicates and invalid records.
func (s *Store) Append(_ context.Context, execution *models.FlowExecution) error {
	if execution == nil {
		return store.NewExecutionError("Append", "", store.ErrInvalidRecord)
	}

	if err := execution.Validate(); err != nil {
		return store.NewExecutionError("Append", execution.ID, fmt.Errorf("%w: %w", store.ErrInvalidRecord, err))
	}

	if err := validateID(execution.ID); err != nil {
		return store.NewExecutionError("Append", execution.ID, fmt.Errorf("%w: %w", store.ErrInvalidRecord, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(execution.ID)); err == nil {
		return store.NewExecutionError("Append", execution.ID, store.ErrDuplicateExecution)
	}

	env := envelope{Seq: s.nextSeq, Execution: execution}
	if err := s.write(env); err != nil {
		return store.NewExecutionError("Append", execution.ID, err)
	}

	s.nextSeq++

	return nil
}

// TransitionStatus applies the in_progress -> terminal transition.
func (s *Store) TransitionStatus(_ context.Context, id string, status models.ExecutionStatus, patch models.StatusPatch) (*models.FlowExecution, error) {
	if !status.IsTerminal() {
		return nil, store.NewExecutionError("TransitionStatus", id,
			fmt.Errorf("%w: target status %q is not terminal", store.ErrInvalidTransition, status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read(id)
	if err != nil {
		return nil, store.NewExecutionError("TransitionStatus", id, err)
	}

	current := env.Execution
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

	env.Execution = updated
	if err := s.write(*env); err != nil {
		return nil, store.NewExecutionError("TransitionStatus", id, err)
	}

	return updated.Clone(), nil
}

// Get returns the record with the given id.
func (s *Store) Get(_ context.Context, id string) (*models.FlowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, err := s.read(id)
	if err != nil {
		return nil, store.NewExecutionError("Get", id, err)
	}

	return env.Execution, nil
}

// Scan returns all records ordered by insertion sequence.
func (s *Store) Scan(_ context.Context) ([]*models.FlowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	envelopes, err := s.readAll()
	if err != nil {
		return nil, store.NewExecutionError("Scan", "", err)
	}

	sort.Slice(envelopes, func(i, j int) bool {
		return envelopes[i].Seq < envelopes[j].Seq
	})

	executions := make([]*models.FlowExecution, 0, len(envelopes))
	for _, env := range envelopes {
		executions = append(executions, env.Execution)
	}

	return executions, nil
}

// PruneBefore evicts records with a timestamp before cutoff.
func (s *Store) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	envelopes, err := s.readAll()
	if err != nil {
		return 0, store.NewExecutionError("PruneBefore", "", err)
	}

	pruned := 0

	for _, env := range envelopes {
		if !env.Execution.Timestamp.Before(cutoff) {
			continue
		}

		if err := os.Remove(s.path(env.Execution.ID)); err != nil {
			return pruned, store.NewExecutionError("PruneBefore", env.Execution.ID, err)
		}

		pruned++
	}

	return pruned, nil
}

// HealthCheck verifies the root directory exists.
func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) read(id string) (*envelope, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrExecutionNotFound, err)
	}

	data, err := os.ReadFile(s.path(id)) // #nosec G304 -- id is validated, path is constructed safely
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &env, nil
}

func (s *Store) write(env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", env.Execution.ID, err)
	}

	if err := os.WriteFile(s.path(env.Execution.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write execution %s: %w", env.Execution.ID, err)
	}

	return nil
}

func (s *Store) readAll() ([]envelope, error) {
	entries, err := os.ReadDir(s.executionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read executions directory: %w", err)
	}

	envelopes := make([]envelope, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.executionsDir(), entry.Name())) // #nosec G304 -- directory listing under the store root
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", entry.Name(), err)
		}

		envelopes = append(envelopes, env)
	}

	return envelopes, nil
}

var _ store.ExecutionStore = (*Store)(nil)
