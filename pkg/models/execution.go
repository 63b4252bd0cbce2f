// Package models defines the core domain models for automation flow execution history.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ExecutionStatus represents the lifecycle state of a flow execution.
type ExecutionStatus string

const (
	ExecutionStatusSuccess    ExecutionStatus = "success"
	ExecutionStatusFailed     ExecutionStatus = "failed"
	ExecutionStatusInProgress ExecutionStatus = "in_progress" // Only non-terminal state
	ExecutionStatusCanceled   ExecutionStatus = "canceled"
)

// Valid reports whether s is one of the known execution statuses.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusFailed, ExecutionStatusInProgress, ExecutionStatusCanceled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s can no longer change.
func (s ExecutionStatus) IsTerminal() bool {
	return s.Valid() && s != ExecutionStatusInProgress
}

// TriggerType identifies what started a flow execution.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
	TriggerWebhook   TriggerType = "webhook"
	TriggerEvent     TriggerType = "event"
)

// Valid reports whether t is one of the known trigger types.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerManual, TriggerScheduled, TriggerWebhook, TriggerEvent:
		return true
	default:
		return false
	}
}

// LogLevel is the severity of a diagnostic log line.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// StepStatus is the outcome of a single node execution within a flow run.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// ClientRef is the optional end customer an execution ran for.
type ClientRef struct {
	ID     string `json:"id"     validate:"required"`
	Name   string `json:"name"   validate:"required"`
	Avatar string `json:"avatar,omitempty"`
}

// LogEntry is one diagnostic line emitted during an execution.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

// ExecutionStep is one node execution within a flow run.
type ExecutionStep struct {
	StepNumber int            `json:"step_number" validate:"min=1"`
	NodeType   string         `json:"node_type"`
	NodeName   string         `json:"node_name"`
	Status     StepStatus     `json:"status"`
	DurationMS int64          `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
	Output     map[string]any `json:"output,omitempty"`
}

// ExecutionError carries the failure message and stack trace of a failed run.
type ExecutionError struct {
	Message string `json:"message" validate:"required"`
	Stack   string `json:"stack,omitempty"`
}

// FlowExecution is one historical run of an automation flow.
//
// Records are immutable once they reach a terminal status. The only permitted
// mutation is the in_progress -> terminal transition, which may touch
// status, duration, error, steps and logs but never the identity fields.
type FlowExecution struct {
	ID             string          `json:"id"        validate:"required"`
	FlowID         string          `json:"flow_id"   validate:"required"`
	FlowName       string          `json:"flow_name" validate:"required"`
	Timestamp      time.Time       `json:"timestamp"`
	Status         ExecutionStatus `json:"status"    validate:"required"`
	Trigger        TriggerType     `json:"trigger"   validate:"required"`
	TriggerDetails string          `json:"trigger_details,omitempty"`
	Client         *ClientRef      `json:"client,omitempty"`
	DurationMS     int64           `json:"duration_ms"     validate:"min=0"`
	StepsCompleted int             `json:"steps_completed" validate:"min=0"`
	TotalSteps     int             `json:"total_steps"     validate:"min=0"`
	Error          *ExecutionError `json:"error,omitempty"`
	Logs           []LogEntry      `json:"logs,omitempty"`
	Steps          []ExecutionStep `json:"steps,omitempty"`
	InputPayload   map[string]any  `json:"input_payload,omitempty"`
	OutputPayload  map[string]any  `json:"output_payload,omitempty"`
	Variables      map[string]any  `json:"variables,omitempty"`
}

var (
	ErrInvalidExecutionStatus = errors.New("invalid execution status")
	ErrInvalidTriggerType     = errors.New("invalid trigger type")
	ErrNegativeDuration       = errors.New("duration must be non-negative")
	ErrStepCountOutOfRange    = errors.New("steps completed must be between 0 and total steps")
	ErrIncompleteSuccess      = errors.New("successful execution must have all steps completed")
	ErrErrorStatusMismatch    = errors.New("error must be present exactly when status is failed")
)

// Validate checks the structural invariants of an execution record.
func (e *FlowExecution) Validate() error {
	if e.ID == "" {
		return errors.New("execution id is required")
	}

	if e.FlowID == "" {
		return errors.New("flow id is required")
	}

	if !e.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidExecutionStatus, e.Status)
	}

	if !e.Trigger.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTriggerType, e.Trigger)
	}

	if e.DurationMS < 0 {
		return ErrNegativeDuration
	}

	if e.StepsCompleted < 0 || e.StepsCompleted > e.TotalSteps {
		return ErrStepCountOutOfRange
	}

	if e.Status == ExecutionStatusSuccess && e.StepsCompleted != e.TotalSteps {
		return ErrIncompleteSuccess
	}

	hasError := e.Error != nil && e.Error.Message != ""
	if hasError != (e.Status == ExecutionStatusFailed) {
		return ErrErrorStatusMismatch
	}

	return nil
}

// ErrorMessage returns the failure message, or "" for non-failed executions.
func (e *FlowExecution) ErrorMessage() string {
	if e.Error == nil {
		return ""
	}

	return e.Error.Message
}

// Clone returns a deep copy of the execution record.
func (e *FlowExecution) Clone() *FlowExecution {
	if e == nil {
		return nil
	}

	clone := *e

	if e.Client != nil {
		client := *e.Client
		clone.Client = &client
	}

	if e.Error != nil {
		execErr := *e.Error
		clone.Error = &execErr
	}

	if e.Logs != nil {
		clone.Logs = make([]LogEntry, len(e.Logs))
		for i, entry := range e.Logs {
			clone.Logs[i] = entry
			clone.Logs[i].Context = cloneMap(entry.Context)
		}
	}

	if e.Steps != nil {
		clone.Steps = make([]ExecutionStep, len(e.Steps))
		for i, step := range e.Steps {
			clone.Steps[i] = step
			clone.Steps[i].Output = cloneMap(step.Output)
		}
	}

	clone.InputPayload = cloneMap(e.InputPayload)
	clone.OutputPayload = cloneMap(e.OutputPayload)
	clone.Variables = cloneMap(e.Variables)

	return &clone
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = v
	}

	return clone
}

// StatusPatch carries the fields that may change on the
// in_progress -> terminal transition.
type StatusPatch struct {
	DurationMS     *int64          `json:"duration_ms,omitempty"`
	StepsCompleted *int            `json:"steps_completed,omitempty"`
	Error          *ExecutionError `json:"error,omitempty"`
	Logs           []LogEntry      `json:"logs,omitempty"`
	Steps          []ExecutionStep `json:"steps,omitempty"`
	OutputPayload  map[string]any  `json:"output_payload,omitempty"`
}

// ExecutionSummary is the projection of an execution used by list views.
type ExecutionSummary struct {
	ID             string          `json:"id"`
	FlowID         string          `json:"flow_id"`
	FlowName       string          `json:"flow_name"`
	Timestamp      time.Time       `json:"timestamp"`
	Status         ExecutionStatus `json:"status"`
	Trigger        TriggerType     `json:"trigger"`
	TriggerDetails string          `json:"trigger_details,omitempty"`
	Client         *ClientRef      `json:"client,omitempty"`
	DurationMS     int64           `json:"duration_ms"`
	StepsCompleted int             `json:"steps_completed"`
	TotalSteps     int             `json:"total_steps"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// Summary projects the execution onto its list-view fields.
func (e *FlowExecution) Summary() ExecutionSummary {
	summary := ExecutionSummary{
		ID:             e.ID,
		FlowID:         e.FlowID,
		FlowName:       e.FlowName,
		Timestamp:      e.Timestamp,
		Status:         e.Status,
		Trigger:        e.Trigger,
		TriggerDetails: e.TriggerDetails,
		DurationMS:     e.DurationMS,
		StepsCompleted: e.StepsCompleted,
		TotalSteps:     e.TotalSteps,
		ErrorMessage:   e.ErrorMessage(),
	}

	if e.Client != nil {
		client := *e.Client
		summary.Client = &client
	}

	return summary
}

// FlowRef is a distinct flow observed in the execution history.
type FlowRef struct {
	FlowID         string    `json:"flow_id"`
	FlowName       string    `json:"flow_name"`
	LastExecutedAt time.Time `json:"last_executed_at"`
}
