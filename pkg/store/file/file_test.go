package file_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planstudio/flowhistory/pkg/models"
	"github.com/planstudio/flowhistory/pkg/store"
	"github.com/planstudio/flowhistory/pkg/store/file"
)

func newExecution(id string, status models.ExecutionStatus, timestamp time.Time) *models.FlowExecution {
	execution := &models.FlowExecution{
		ID:             id,
		FlowID:         "flow-3",
		FlowName:       "Abandoned Cart Recovery",
		Timestamp:      timestamp,
		Status:         status,
		Trigger:        models.TriggerEvent,
		DurationMS:     950,
		StepsCompleted: 3,
		TotalSteps:     3,
	}

	switch status {
	case models.ExecutionStatusFailed:
		execution.StepsCompleted = 1
		execution.Error = &models.ExecutionError{Message: "Client not found"}
	case models.ExecutionStatusInProgress, models.ExecutionStatusCanceled:
		execution.StepsCompleted = 1
	case models.ExecutionStatusSuccess:
	}

	return execution
}

func TestStore_AppendAndGet(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s, err := file.NewStore(t.TempDir())
	require.NoError(t, err)

	timestamp := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, newExecution("exec-1", models.ExecutionStatusSuccess, timestamp)))

	stored, err := s.Get(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "Abandoned Cart Recovery", stored.FlowName)
	assert.True(t, stored.Timestamp.Equal(timestamp))

	err = s.Append(ctx, newExecution("exec-1", models.ExecutionStatusSuccess, timestamp))
	require.True(t, store.IsDuplicateExecution(err))

	_, err = s.Get(ctx, "missing")
	require.True(t, store.IsExecutionNotFound(err))
}

func TestStore_RejectsPathTraversalIDs(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s, err := file.NewStore(t.TempDir())
	require.NoError(t, err)

	timestamp := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	for _, id := range []string{"../escape", "a/b", `a\b`} {
		err := s.Append(ctx, newExecution(id, models.ExecutionStatusSuccess, timestamp))
		require.True(t, store.IsInvalidRecord(err), "id %q must be rejected", id)
	}
}

func TestStore_ScanOrderSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	root := t.TempDir()

	s, err := file.NewStore(root)
	require.NoError(t, err)

	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	// Insertion order deliberately disagrees with both id and timestamp order.
	ids := []string{"exec-9", "exec-1", "exec-5"}

	for i, id := range ids {
		require.NoError(t, s.Append(ctx, newExecution(id, models.ExecutionStatusSuccess, base.Add(-time.Duration(i)*time.Hour))))
	}

	require.NoError(t, s.Close(ctx))

	reopened, err := file.NewStore(root)
	require.NoError(t, err)

	snapshot, err := reopened.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 3)

	for i, execution := range snapshot {
		assert.Equal(t, ids[i], execution.ID)
	}

	// New appends continue the sequence after reopen.
	require.NoError(t, reopened.Append(ctx, newExecution("exec-2", models.ExecutionStatusSuccess, base)))

	snapshot, err = reopened.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 4)
	assert.Equal(t, "exec-2", snapshot[3].ID)
}

func TestStore_TransitionStatus(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s, err := file.NewStore(t.TempDir())
	require.NoError(t, err)

	timestamp := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, newExecution("exec-1", models.ExecutionStatusInProgress, timestamp)))

	updated, err := s.TransitionStatus(ctx, "exec-1", models.ExecutionStatusFailed, models.StatusPatch{
		Error: &models.ExecutionError{Message: "Timeout: external API did not respond"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, updated.Status)

	_, err = s.TransitionStatus(ctx, "exec-1", models.ExecutionStatusSuccess, models.StatusPatch{})
	require.True(t, store.IsInvalidTransition(err))

	stored, err := s.Get(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
}

func TestStore_PruneBefore(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s, err := file.NewStore(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		id := fmt.Sprintf("exec-%d", i)
		require.NoError(t, s.Append(ctx, newExecution(id, models.ExecutionStatusSuccess, base.AddDate(0, 0, i))))
	}

	pruned, err := s.PruneBefore(ctx, base.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	snapshot, err := s.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "exec-3", snapshot[0].ID)
}
