package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/planstudio/flowhistory/pkg/models"
)

// Evaluate checks every rule against the snapshot and returns the events
// that fired. Evaluation is stateless: repeated calls against an unchanged
// snapshot produce identical events (modulo TriggeredAt, fixed by now).
// Deduplication across evaluation cycles is the caller's concern.
func Evaluate(executions []*models.FlowExecution, rules []Rule, now time.Time) ([]Event, error) {
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
	}

	events := make([]Event, 0)

	for _, rule := range rules {
		switch rule.Type {
		case RuleFailureRate:
			events = append(events, evaluateFailureRate(executions, rule, now)...)
		case RuleFlowInactivity:
			events = append(events, evaluateFlowInactivity(executions, rule, now)...)
		case RuleExecutionDuration:
			events = append(events, evaluateExecutionDuration(executions, rule, now)...)
		}
	}

	return events, nil
}

func evaluateFailureRate(executions []*models.FlowExecution, rule Rule, now time.Time) []Event {
	cutoff := now.AddDate(0, 0, -rule.WindowDays)

	var total, failed int

	for _, execution := range executions {
		if execution.Timestamp.Before(cutoff) {
			continue
		}

		total++

		if execution.Status == models.ExecutionStatusFailed {
			failed++
		}
	}

	if total == 0 {
		return nil
	}

	rate := float64(failed) / float64(total) * 100
	if rate <= rule.Percent {
		return nil
	}

	return []Event{{
		RuleID:      rule.ID,
		RuleType:    RuleFailureRate,
		TriggeredAt: now,
		Details: fmt.Sprintf("failure rate %.1f%% over the last %d day(s) exceeds threshold %.1f%% (%d of %d failed)",
			rate, rule.WindowDays, rule.Percent, failed, total),
	}}
}

func evaluateFlowInactivity(executions []*models.FlowExecution, rule Rule, now time.Time) []Event {
	cutoff := now.AddDate(0, 0, -rule.Days)

	lastSeen := make(map[string]time.Time)
	names := make(map[string]string)

	for _, execution := range executions {
		if execution.Timestamp.After(lastSeen[execution.FlowID]) {
			lastSeen[execution.FlowID] = execution.Timestamp
			names[execution.FlowID] = execution.FlowName
		}
	}

	flowIDs := make([]string, 0, len(lastSeen))
	for flowID := range lastSeen {
		flowIDs = append(flowIDs, flowID)
	}

	sort.Strings(flowIDs)

	var events []Event

	for _, flowID := range flowIDs {
		if !lastSeen[flowID].Before(cutoff) {
			continue
		}

		events = append(events, Event{
			RuleID:      rule.ID,
			RuleType:    RuleFlowInactivity,
			TriggeredAt: now,
			FlowID:      flowID,
			Details: fmt.Sprintf("flow %q has not executed since %s (threshold %d day(s))",
				names[flowID], lastSeen[flowID].Format(time.RFC3339), rule.Days),
		})
	}

	return events
}

func evaluateExecutionDuration(executions []*models.FlowExecution, rule Rule, now time.Time) []Event {
	thresholdMS := int64(rule.Seconds) * 1000

	var events []Event

	for _, execution := range executions {
		if execution.DurationMS <= thresholdMS {
			continue
		}

		events = append(events, Event{
			RuleID:      rule.ID,
			RuleType:    RuleExecutionDuration,
			TriggeredAt: now,
			FlowID:      execution.FlowID,
			ExecutionID: execution.ID,
			Details: fmt.Sprintf("execution %s of flow %q ran for %dms, over the %ds threshold",
				execution.ID, execution.FlowName, execution.DurationMS, rule.Seconds),
		})
	}

	return events
}
