package memory_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planstudio/flowhistory/pkg/models"
	"github.com/planstudio/flowhistory/pkg/store"
	"github.com/planstudio/flowhistory/pkg/store/memory"
)

func newExecution(id string, status models.ExecutionStatus, timestamp time.Time) *models.FlowExecution {
	execution := &models.FlowExecution{
		ID:             id,
		FlowID:         "flow-1",
		FlowName:       "Lead Scoring Automation",
		Timestamp:      timestamp,
		Status:         status,
		Trigger:        models.TriggerScheduled,
		DurationMS:     800,
		StepsCompleted: 4,
		TotalSteps:     4,
	}

	switch status {
	case models.ExecutionStatusFailed:
		execution.StepsCompleted = 2
		execution.Error = &models.ExecutionError{Message: "Timeout: external API did not respond"}
	case models.ExecutionStatusInProgress, models.ExecutionStatusCanceled:
		execution.StepsCompleted = 2
	case models.ExecutionStatusSuccess:
	}

	return execution
}

func TestStore_Append(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := memory.NewStore()
	timestamp := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, newExecution("exec-1", models.ExecutionStatusSuccess, timestamp)))

	err := s.Append(ctx, newExecution("exec-1", models.ExecutionStatusSuccess, timestamp))
	require.True(t, store.IsDuplicateExecution(err))

	invalid := newExecution("exec-2", models.ExecutionStatusSuccess, timestamp)
	invalid.DurationMS = -5
	err = s.Append(ctx, invalid)
	require.True(t, store.IsInvalidRecord(err))
}

func TestStore_AppendIsolatesCaller(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := memory.NewStore()
	timestamp := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	execution := newExecution("exec-1", models.ExecutionStatusSuccess, timestamp)
	require.NoError(t, s.Append(ctx, execution))

	execution.FlowName = "changed after append"

	stored, err := s.Get(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "Lead Scoring Automation", stored.FlowName)
}

func TestStore_Get(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := memory.NewStore()

	_, err := s.Get(ctx, "missing")
	require.True(t, store.IsExecutionNotFound(err))
}

func TestStore_TransitionStatus(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := memory.NewStore()
	timestamp := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	execution := newExecution("exec-1", models.ExecutionStatusInProgress, timestamp)
	execution.TotalSteps = 5
	execution.StepsCompleted = 2
	require.NoError(t, s.Append(ctx, execution))

	steps := 5
	duration := int64(2200)

	updated, err := s.TransitionStatus(ctx, "exec-1", models.ExecutionStatusSuccess, models.StatusPatch{
		StepsCompleted: &steps,
		DurationMS:     &duration,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, updated.Status)
	assert.Equal(t, 5, updated.StepsCompleted)
	assert.Equal(t, int64(2200), updated.DurationMS)

	// Terminal records never transition again.
	_, err = s.TransitionStatus(ctx, "exec-1", models.ExecutionStatusFailed, models.StatusPatch{
		Error: &models.ExecutionError{Message: "too late"},
	})
	require.True(t, store.IsInvalidTransition(err))

	stored, err := s.Get(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, stored.Status)
}

func TestStore_TransitionStatusRejectsNonTerminalTarget(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := memory.NewStore()
	timestamp := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, newExecution("exec-1", models.ExecutionStatusInProgress, timestamp)))

	_, err := s.TransitionStatus(ctx, "exec-1", models.ExecutionStatusInProgress, models.StatusPatch{})
	require.True(t, store.IsInvalidTransition(err))
}

func TestStore_TransitionStatusNotFound(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := memory.NewStore()

	_, err := s.TransitionStatus(ctx, "missing", models.ExecutionStatusSuccess, models.StatusPatch{})
	require.True(t, store.IsExecutionNotFound(err))
}

func TestStore_ScanInsertionOrder(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := memory.NewStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		id := fmt.Sprintf("exec-%d", i)
		require.NoError(t, s.Append(ctx, newExecution(id, models.ExecutionStatusSuccess, base.Add(time.Duration(i)*time.Minute))))
	}

	snapshot, err := s.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 5)

	for i, execution := range snapshot {
		assert.Equal(t, fmt.Sprintf("exec-%d", i), execution.ID)
	}
}

func TestStore_ScanSnapshotIsIsolated(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := memory.NewStore()
	timestamp := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, newExecution("exec-1", models.ExecutionStatusSuccess, timestamp)))

	snapshot, err := s.Scan(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, newExecution("exec-2", models.ExecutionStatusSuccess, timestamp)))

	assert.Len(t, snapshot, 1)
}

func TestStore_PruneBefore(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := memory.NewStore()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := range 4 {
		id := fmt.Sprintf("exec-%d", i)
		require.NoError(t, s.Append(ctx, newExecution(id, models.ExecutionStatusSuccess, base.AddDate(0, 0, i))))
	}

	pruned, err := s.PruneBefore(ctx, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	snapshot, err := s.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "exec-2", snapshot[0].ID)
}

func TestStore_EvictionByCount(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := memory.NewStore(memory.WithMaxRecords(3))
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		id := fmt.Sprintf("exec-%d", i)
		require.NoError(t, s.Append(ctx, newExecution(id, models.ExecutionStatusSuccess, base.Add(time.Duration(i)*time.Minute))))
	}

	snapshot, err := s.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 3)
	assert.Equal(t, "exec-2", snapshot[0].ID)
	assert.Equal(t, "exec-4", snapshot[2].ID)
}

func TestStore_EvictionByAge(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	s := memory.NewStore(
		memory.WithMaxAge(48*time.Hour),
		memory.WithClock(func() time.Time { return now }),
	)

	require.NoError(t, s.Append(ctx, newExecution("old", models.ExecutionStatusSuccess, now.Add(-72*time.Hour))))
	require.NoError(t, s.Append(ctx, newExecution("fresh", models.ExecutionStatusSuccess, now.Add(-time.Hour))))

	snapshot, err := s.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "fresh", snapshot[0].ID)
}
