// Package web provides HTTP request and response types for the execution
// history API.
package web

import (
	"github.com/planstudio/flowhistory/pkg/alerts"
	"github.com/planstudio/flowhistory/pkg/models"
)

// IngestExecutionRequest represents the request body for recording a new
// execution.
type IngestExecutionRequest struct {
	ID             string                 `json:"id"        validate:"required"`
	FlowID         string                 `json:"flow_id"   validate:"required"`
	FlowName       string                 `json:"flow_name" validate:"required"`
	Timestamp      string                 `json:"timestamp,omitempty"`
	Status         string                 `json:"status"  validate:"required"`
	Trigger        string                 `json:"trigger" validate:"required"`
	TriggerDetails string                 `json:"trigger_details,omitempty"`
	Client         *models.ClientRef      `json:"client,omitempty"`
	DurationMS     int64                  `json:"duration_ms"     validate:"min=0"`
	StepsCompleted int                    `json:"steps_completed" validate:"min=0"`
	TotalSteps     int                    `json:"total_steps"     validate:"min=0"`
	Error          *models.ExecutionError `json:"error,omitempty"`
	Logs           []models.LogEntry      `json:"logs,omitempty"`
	Steps          []models.ExecutionStep `json:"steps,omitempty"`
	InputPayload   map[string]any         `json:"input_payload,omitempty"`
	OutputPayload  map[string]any         `json:"output_payload,omitempty"`
	Variables      map[string]any         `json:"variables,omitempty"`
}

// TransitionStatusRequest represents the request body for moving an
// in-flight execution to a terminal status. Absent fields leave the stored
// record untouched.
type TransitionStatusRequest struct {
	Status         string                 `json:"status" validate:"required"`
	DurationMS     *int64                 `json:"duration_ms,omitempty"     validate:"omitempty,min=0"`
	StepsCompleted *int                   `json:"steps_completed,omitempty" validate:"omitempty,min=0"`
	Error          *models.ExecutionError `json:"error,omitempty"`
	Logs           []models.LogEntry      `json:"logs,omitempty"`
	Steps          []models.ExecutionStep `json:"steps,omitempty"`
	OutputPayload  map[string]any         `json:"output_payload,omitempty"`
}

// EvaluateAlertsRequest represents the request body for a one-shot alert
// rule evaluation.
type EvaluateAlertsRequest struct {
	Rules []alerts.Rule `json:"rules" validate:"required,min=1"`
}
