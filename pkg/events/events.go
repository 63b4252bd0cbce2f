// Package events defines event types and structures for execution history
// lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/planstudio/flowhistory/pkg/alerts"
	"github.com/planstudio/flowhistory/pkg/models"
)

type EventType string

// Topic carries all flowhistory lifecycle events.
const Topic = "flowhistory.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Ingestion lifecycle events.
	ExecutionIngestedEvent EventType = "execution.ingested"
	ExecutionFinishedEvent EventType = "execution.finished"

	// Alerting events.
	AlertTriggeredEvent EventType = "alert.triggered"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func newBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// ExecutionIngested is published when a new execution record enters the
// store, whether it arrived in progress or already terminal.
type ExecutionIngested struct {
	BaseEvent

	ExecutionID string                 `json:"execution_id"`
	FlowID      string                 `json:"flow_id"`
	Status      models.ExecutionStatus `json:"status"`
}

func NewExecutionIngested(execution *models.FlowExecution) ExecutionIngested {
	return ExecutionIngested{
		BaseEvent:   newBaseEvent(ExecutionIngestedEvent),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		Status:      execution.Status,
	}
}

func (e ExecutionIngested) GetType() EventType {
	return ExecutionIngestedEvent
}

// ExecutionFinished is published when a stored in_progress record reaches a
// terminal status.
type ExecutionFinished struct {
	BaseEvent

	ExecutionID string                 `json:"execution_id"`
	FlowID      string                 `json:"flow_id"`
	Status      models.ExecutionStatus `json:"status"`
	DurationMS  int64                  `json:"duration_ms"`
}

func NewExecutionFinished(execution *models.FlowExecution) ExecutionFinished {
	return ExecutionFinished{
		BaseEvent:   newBaseEvent(ExecutionFinishedEvent),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		Status:      execution.Status,
		DurationMS:  execution.DurationMS,
	}
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

// AlertTriggered is published for every alert rule firing.
type AlertTriggered struct {
	BaseEvent

	RuleID      string          `json:"rule_id"`
	RuleType    alerts.RuleType `json:"rule_type"`
	FlowID      string          `json:"flow_id,omitempty"`
	ExecutionID string          `json:"execution_id,omitempty"`
	Details     string          `json:"details"`
}

func NewAlertTriggered(alertEvent alerts.Event) AlertTriggered {
	return AlertTriggered{
		BaseEvent:   newBaseEvent(AlertTriggeredEvent),
		RuleID:      alertEvent.RuleID,
		RuleType:    alertEvent.RuleType,
		FlowID:      alertEvent.FlowID,
		ExecutionID: alertEvent.ExecutionID,
		Details:     alertEvent.Details,
	}
}

func (e AlertTriggered) GetType() EventType {
	return AlertTriggeredEvent
}
