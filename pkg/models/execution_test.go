package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planstudio/flowhistory/pkg/models"
)

func validExecution() *models.FlowExecution {
	return &models.FlowExecution{
		ID:             "exec-1",
		FlowID:         "flow-1",
		FlowName:       "Onboarding Email Sequence",
		Timestamp:      time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Status:         models.ExecutionStatusSuccess,
		Trigger:        models.TriggerManual,
		DurationMS:     1200,
		StepsCompleted: 3,
		TotalSteps:     3,
	}
}

func TestFlowExecution_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(e *models.FlowExecution)
		expected error
	}{
		{
			name:   "valid success",
			mutate: func(_ *models.FlowExecution) {},
		},
		{
			name: "valid failed with error",
			mutate: func(e *models.FlowExecution) {
				e.Status = models.ExecutionStatusFailed
				e.StepsCompleted = 1
				e.Error = &models.ExecutionError{Message: "Timeout: external API did not respond"}
			},
		},
		{
			name: "unknown status",
			mutate: func(e *models.FlowExecution) {
				e.Status = models.ExecutionStatus("exploded")
			},
			expected: models.ErrInvalidExecutionStatus,
		},
		{
			name: "unknown trigger",
			mutate: func(e *models.FlowExecution) {
				e.Trigger = models.TriggerType("telepathy")
			},
			expected: models.ErrInvalidTriggerType,
		},
		{
			name: "negative duration",
			mutate: func(e *models.FlowExecution) {
				e.DurationMS = -1
			},
			expected: models.ErrNegativeDuration,
		},
		{
			name: "steps completed beyond total",
			mutate: func(e *models.FlowExecution) {
				e.StepsCompleted = 4
			},
			expected: models.ErrStepCountOutOfRange,
		},
		{
			name: "success with incomplete steps",
			mutate: func(e *models.FlowExecution) {
				e.StepsCompleted = 2
			},
			expected: models.ErrIncompleteSuccess,
		},
		{
			name: "failed without error",
			mutate: func(e *models.FlowExecution) {
				e.Status = models.ExecutionStatusFailed
				e.StepsCompleted = 1
			},
			expected: models.ErrErrorStatusMismatch,
		},
		{
			name: "error on non-failed status",
			mutate: func(e *models.FlowExecution) {
				e.Error = &models.ExecutionError{Message: "Client not found"}
			},
			expected: models.ErrErrorStatusMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			execution := validExecution()
			tt.mutate(execution)

			err := execution.Validate()
			if tt.expected == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestFlowExecution_Clone(t *testing.T) {
	t.Parallel()

	original := validExecution()
	original.Client = &models.ClientRef{ID: "client-1", Name: "Juan Pérez"}
	original.Logs = []models.LogEntry{
		{Timestamp: original.Timestamp, Level: models.LogLevelInfo, Message: "started"},
	}
	original.Variables = map[string]any{"env": "prod"}

	clone := original.Clone()
	require.Equal(t, original, clone)

	clone.Client.Name = "changed"
	clone.Logs[0].Message = "changed"
	clone.Variables["env"] = "staging"

	assert.Equal(t, "Juan Pérez", original.Client.Name)
	assert.Equal(t, "started", original.Logs[0].Message)
	assert.Equal(t, "prod", original.Variables["env"])
}

func TestFlowExecution_Summary(t *testing.T) {
	t.Parallel()

	execution := validExecution()
	execution.Status = models.ExecutionStatusFailed
	execution.StepsCompleted = 1
	execution.Error = &models.ExecutionError{Message: "Rate limit exceeded: max 100 requests/hour"}

	summary := execution.Summary()

	assert.Equal(t, execution.ID, summary.ID)
	assert.Equal(t, execution.FlowName, summary.FlowName)
	assert.Equal(t, models.ExecutionStatusFailed, summary.Status)
	assert.Equal(t, "Rate limit exceeded: max 100 requests/hour", summary.ErrorMessage)
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, models.ExecutionStatusInProgress.IsTerminal())
	assert.True(t, models.ExecutionStatusSuccess.IsTerminal())
	assert.True(t, models.ExecutionStatusFailed.IsTerminal())
	assert.True(t, models.ExecutionStatusCanceled.IsTerminal())
}
