package alerts_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planstudio/flowhistory/pkg/alerts"
	"github.com/planstudio/flowhistory/pkg/models"
)

func execution(id, flowID string, status models.ExecutionStatus, timestamp time.Time, durationMS int64) *models.FlowExecution {
	e := &models.FlowExecution{
		ID:         id,
		FlowID:     flowID,
		FlowName:   flowID,
		Timestamp:  timestamp,
		Status:     status,
		Trigger:    models.TriggerScheduled,
		DurationMS: durationMS,
	}

	if status == models.ExecutionStatusFailed {
		e.Error = &models.ExecutionError{Message: "Timeout: external API did not respond"}
	}

	return e
}

func TestEvaluate_FailureRate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rule := alerts.Rule{ID: "r1", Type: alerts.RuleFailureRate, Percent: 25, WindowDays: 7}

	executions := []*models.FlowExecution{
		execution("e1", "f1", models.ExecutionStatusFailed, now.Add(-time.Hour), 100),
		execution("e2", "f1", models.ExecutionStatusSuccess, now.Add(-2*time.Hour), 100),
		execution("e3", "f1", models.ExecutionStatusFailed, now.AddDate(0, 0, -2), 100),
		// Outside the 7 day window, must not count.
		execution("e4", "f1", models.ExecutionStatusFailed, now.AddDate(0, 0, -10), 100),
	}

	events, err := alerts.Evaluate(executions, []alerts.Rule{rule}, now)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "r1", events[0].RuleID)
	assert.Equal(t, alerts.RuleFailureRate, events[0].RuleType)
	assert.True(t, events[0].TriggeredAt.Equal(now))
	assert.Contains(t, events[0].Details, "2 of 3 failed")
}

func TestEvaluate_FailureRateAtThresholdDoesNotFire(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rule := alerts.Rule{ID: "r1", Type: alerts.RuleFailureRate, Percent: 50, WindowDays: 7}

	executions := []*models.FlowExecution{
		execution("e1", "f1", models.ExecutionStatusFailed, now.Add(-time.Hour), 100),
		execution("e2", "f1", models.ExecutionStatusSuccess, now.Add(-2*time.Hour), 100),
	}

	events, err := alerts.Evaluate(executions, []alerts.Rule{rule}, now)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEvaluate_FailureRateEmptyWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rule := alerts.Rule{ID: "r1", Type: alerts.RuleFailureRate, Percent: 10, WindowDays: 7}

	events, err := alerts.Evaluate(nil, []alerts.Rule{rule}, now)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEvaluate_FlowInactivity(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rule := alerts.Rule{ID: "r2", Type: alerts.RuleFlowInactivity, Days: 3}

	executions := []*models.FlowExecution{
		execution("e1", "f-stale", models.ExecutionStatusSuccess, now.AddDate(0, 0, -5), 100),
		execution("e2", "f-active", models.ExecutionStatusSuccess, now.Add(-time.Hour), 100),
		execution("e3", "f-also-stale", models.ExecutionStatusSuccess, now.AddDate(0, 0, -4), 100),
	}

	events, err := alerts.Evaluate(executions, []alerts.Rule{rule}, now)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Deterministic order: flow ids ascending.
	assert.Equal(t, "f-also-stale", events[0].FlowID)
	assert.Equal(t, "f-stale", events[1].FlowID)
}

func TestEvaluate_ExecutionDuration(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rule := alerts.Rule{ID: "r3", Type: alerts.RuleExecutionDuration, Seconds: 2}

	executions := []*models.FlowExecution{
		execution("fast", "f1", models.ExecutionStatusSuccess, now, 1500),
		execution("exactly", "f1", models.ExecutionStatusSuccess, now, 2000),
		execution("slow", "f1", models.ExecutionStatusSuccess, now, 4800),
	}

	events, err := alerts.Evaluate(executions, []alerts.Rule{rule}, now)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "slow", events[0].ExecutionID)
	assert.Contains(t, events[0].Details, "4800ms")
}

func TestEvaluate_MultipleRules(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	rules := []alerts.Rule{
		{ID: "rate", Type: alerts.RuleFailureRate, Percent: 10, WindowDays: 7},
		{ID: "slow", Type: alerts.RuleExecutionDuration, Seconds: 1},
	}

	executions := []*models.FlowExecution{
		execution("e1", "f1", models.ExecutionStatusFailed, now.Add(-time.Hour), 3000),
	}

	events, err := alerts.Evaluate(executions, rules, now)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "rate", events[0].RuleID)
	assert.Equal(t, "slow", events[1].RuleID)
}

func TestEvaluate_InvalidRule(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rule alerts.Rule
	}{
		{name: "unknown type", rule: alerts.Rule{ID: "r", Type: "carrier_pigeon"}},
		{name: "missing id", rule: alerts.Rule{Type: alerts.RuleFailureRate, Percent: 10, WindowDays: 1}},
		{name: "percent over 100", rule: alerts.Rule{ID: "r", Type: alerts.RuleFailureRate, Percent: 150, WindowDays: 1}},
		{name: "zero window", rule: alerts.Rule{ID: "r", Type: alerts.RuleFailureRate, Percent: 10}},
		{name: "zero days", rule: alerts.Rule{ID: "r", Type: alerts.RuleFlowInactivity}},
		{name: "zero seconds", rule: alerts.Rule{ID: "r", Type: alerts.RuleExecutionDuration}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := alerts.Evaluate(nil, []alerts.Rule{tt.rule}, now)
			require.Error(t, err)
		})
	}
}

func TestEvaluate_Stateless(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rules := []alerts.Rule{{ID: "r1", Type: alerts.RuleFailureRate, Percent: 10, WindowDays: 7}}

	executions := []*models.FlowExecution{
		execution("e1", "f1", models.ExecutionStatusFailed, now.Add(-time.Hour), 100),
	}

	first, err := alerts.Evaluate(executions, rules, now)
	require.NoError(t, err)

	second, err := alerts.Evaluate(executions, rules, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
