// Package alerts evaluates configured alert rules against execution history
// snapshots and produces alert events when thresholds are crossed.
package alerts

import (
	"errors"
	"fmt"
	"time"
)

// RuleType identifies the condition a rule checks.
type RuleType string

const (
	// RuleFailureRate fires when failed/total over a trailing window
	// exceeds a percentage threshold.
	RuleFailureRate RuleType = "failure_rate"

	// RuleFlowInactivity fires for any known flow with no execution within
	// a trailing number of days.
	RuleFlowInactivity RuleType = "flow_inactivity"

	// RuleExecutionDuration fires for any execution whose duration exceeds
	// a threshold in seconds.
	RuleExecutionDuration RuleType = "execution_duration"
)

var (
	ErrUnknownRuleType  = errors.New("unknown alert rule type")
	ErrInvalidThreshold = errors.New("invalid alert rule threshold")
)

// Rule is one configured alert condition. Only the parameters matching the
// rule type are read; Validate rejects rules whose parameters are missing
// or out of range.
type Rule struct {
	ID   string   `json:"id"   yaml:"id"   validate:"required"`
	Type RuleType `json:"type" yaml:"type" validate:"required"`

	// Percent and WindowDays parameterize failure_rate rules.
	Percent    float64 `json:"percent,omitempty"     yaml:"percent,omitempty"`
	WindowDays int     `json:"window_days,omitempty" yaml:"window_days,omitempty"`

	// Days parameterizes flow_inactivity rules.
	Days int `json:"days,omitempty" yaml:"days,omitempty"`

	// Seconds parameterizes execution_duration rules.
	Seconds int `json:"seconds,omitempty" yaml:"seconds,omitempty"`
}

// Validate checks the rule's type and parameters.
func (r Rule) Validate() error {
	if r.ID == "" {
		return errors.New("alert rule id is required")
	}

	switch r.Type {
	case RuleFailureRate:
		if r.Percent <= 0 || r.Percent > 100 {
			return fmt.Errorf("%w: percent must be in (0, 100], got %v", ErrInvalidThreshold, r.Percent)
		}

		if r.WindowDays < 1 {
			return fmt.Errorf("%w: window_days must be at least 1, got %d", ErrInvalidThreshold, r.WindowDays)
		}
	case RuleFlowInactivity:
		if r.Days < 1 {
			return fmt.Errorf("%w: days must be at least 1, got %d", ErrInvalidThreshold, r.Days)
		}
	case RuleExecutionDuration:
		if r.Seconds < 1 {
			return fmt.Errorf("%w: seconds must be at least 1, got %d", ErrInvalidThreshold, r.Seconds)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRuleType, r.Type)
	}

	return nil
}

// Event is one rule firing.
type Event struct {
	RuleID      string    `json:"rule_id"`
	RuleType    RuleType  `json:"rule_type"`
	TriggeredAt time.Time `json:"triggered_at"`
	Details     string    `json:"details"`
	FlowID      string    `json:"flow_id,omitempty"`
	ExecutionID string    `json:"execution_id,omitempty"`
}
