// Package seed generates a deterministic sample population of flow
// executions for demos and local development.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/planstudio/flowhistory/pkg/models"
	"github.com/planstudio/flowhistory/pkg/store"
)

const (
	// DefaultRecords is the population size of a default seed run.
	DefaultRecords = 350
	// DefaultSpanDays is how far back the generated timestamps reach.
	DefaultSpanDays = 30
)

var flows = []struct {
	id, name string
}{
	{"flow-001", "Onboarding Email Sequence"},
	{"flow-002", "Lead Scoring Automation"},
	{"flow-003", "Abandoned Cart Recovery"},
	{"flow-004", "Customer Feedback Loop"},
	{"flow-005", "Weekly Report Generator"},
	{"flow-006", "Social Media Publisher"},
	{"flow-007", "Invoice Reminder System"},
	{"flow-008", "Support Ticket Classifier"},
}

var clients = []models.ClientRef{
	{ID: "client-01", Name: "Juan Pérez"},
	{ID: "client-02", Name: "María García"},
	{ID: "client-03", Name: "Carlos Rodríguez"},
	{ID: "client-04", Name: "Ana Martínez"},
	{ID: "client-05", Name: "Luis Hernández"},
}

var errorMessages = []string{
	"Email bounce: invalid address",
	"Timeout: external API did not respond",
	"Client not found",
	"Condition not met: score < threshold",
	"Rate limit exceeded: max 100 requests/hour",
}

var triggers = []models.TriggerType{
	models.TriggerManual,
	models.TriggerScheduled,
	models.TriggerWebhook,
	models.TriggerEvent,
}

// Generator produces deterministic executions for a given seed value.
type Generator struct {
	rng      *rand.Rand
	now      time.Time
	records  int
	spanDays int
}

// Option configures a Generator.
type Option func(*Generator)

// WithRecords overrides the population size.
func WithRecords(n int) Option {
	return func(g *Generator) {
		g.records = n
	}
}

// WithSpanDays overrides how far back timestamps reach.
func WithSpanDays(days int) Option {
	return func(g *Generator) {
		g.spanDays = days
	}
}

// WithNow pins the reference time timestamps are derived from.
func WithNow(now time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a generator. The same seed always yields the same
// population relative to the reference time.
func NewGenerator(seed int64, opts ...Option) *Generator {
	g := &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		now:      time.Now(),
		records:  DefaultRecords,
		spanDays: DefaultSpanDays,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate produces the execution population sorted oldest first so that
// store insertion order follows chronology.
func (g *Generator) Generate() []*models.FlowExecution {
	executions := make([]*models.FlowExecution, 0, g.records)

	for i := range g.records {
		executions = append(executions, g.execution(i))
	}

	// Insertion order follows chronology.
	sort.SliceStable(executions, func(i, j int) bool {
		return executions[i].Timestamp.Before(executions[j].Timestamp)
	})

	return executions
}

// Populate generates the population and appends it to the store.
func (g *Generator) Populate(ctx context.Context, target store.ExecutionStore) (int, error) {
	executions := g.Generate()

	for _, execution := range executions {
		if err := target.Append(ctx, execution); err != nil {
			return 0, fmt.Errorf("failed to seed execution %s: %w", execution.ID, err)
		}
	}

	return len(executions), nil
}

func (g *Generator) execution(index int) *models.FlowExecution {
	flow := flows[g.rng.Intn(len(flows))]
	client := clients[g.rng.Intn(len(clients))]
	status := g.status()

	// Newer indexes land further back in time.
	offsetMinutes := g.rng.Int63n(int64(g.spanDays) * 24 * 60)
	timestamp := g.now.Add(-time.Duration(offsetMinutes) * time.Minute)

	totalSteps := 3 + g.rng.Intn(7)
	durationMS := int64(50 + g.rng.Intn(4951))

	execution := &models.FlowExecution{
		ID:             fmt.Sprintf("exec-%04d", index+1),
		FlowID:         flow.id,
		FlowName:       flow.name,
		Client:         &client,
		Status:         status,
		Trigger:        triggers[g.rng.Intn(len(triggers))],
		Timestamp:      timestamp,
		DurationMS:     durationMS,
		TotalSteps:     totalSteps,
		StepsCompleted: totalSteps,
	}

	switch status {
	case models.ExecutionStatusFailed:
		execution.StepsCompleted = g.rng.Intn(totalSteps)
		execution.Error = &models.ExecutionError{
			Message: errorMessages[g.rng.Intn(len(errorMessages))],
		}
	case models.ExecutionStatusInProgress:
		execution.StepsCompleted = g.rng.Intn(totalSteps)
		execution.DurationMS = 0
	case models.ExecutionStatusCanceled:
		execution.StepsCompleted = g.rng.Intn(totalSteps)
	case models.ExecutionStatusSuccess:
	}

	execution.Steps = g.steps(execution)
	execution.Logs = g.logs(execution)

	return execution
}

// Status split: 85% success, 10% failed, 3% in progress, 2% canceled.
func (g *Generator) status() models.ExecutionStatus {
	roll := g.rng.Intn(100)

	switch {
	case roll < 85:
		return models.ExecutionStatusSuccess
	case roll < 95:
		return models.ExecutionStatusFailed
	case roll < 98:
		return models.ExecutionStatusInProgress
	default:
		return models.ExecutionStatusCanceled
	}
}

var nodeTypes = []struct {
	nodeType, nodeName string
}{
	{"trigger", "Flow Trigger"},
	{"condition", "Check Conditions"},
	{"http_request", "Call External API"},
	{"email", "Send Email"},
	{"delay", "Wait"},
	{"transform", "Map Payload"},
	{"webhook", "Notify Webhook"},
}

func (g *Generator) steps(execution *models.FlowExecution) []models.ExecutionStep {
	steps := make([]models.ExecutionStep, 0, execution.StepsCompleted)
	stepTime := execution.Timestamp

	for i := range execution.TotalSteps {
		node := nodeTypes[g.rng.Intn(len(nodeTypes))]

		step := models.ExecutionStep{
			StepNumber: i + 1,
			NodeType:   node.nodeType,
			NodeName:   node.nodeName,
			Timestamp:  stepTime,
		}

		switch {
		case i < execution.StepsCompleted:
			step.Status = models.StepStatusSuccess
			step.DurationMS = int64(20 + g.rng.Intn(500))
			stepTime = stepTime.Add(time.Duration(step.DurationMS) * time.Millisecond)
		case i == execution.StepsCompleted && execution.Status == models.ExecutionStatusFailed:
			step.Status = models.StepStatusFailed
			step.DurationMS = int64(20 + g.rng.Intn(500))
		default:
			// Steps past the failure point never ran.
			step.Status = models.StepStatusSkipped
		}

		if step.Status == models.StepStatusSkipped && execution.Status == models.ExecutionStatusInProgress {
			break
		}

		steps = append(steps, step)
	}

	return steps
}

func (g *Generator) logs(execution *models.FlowExecution) []models.LogEntry {
	logs := []models.LogEntry{
		{
			Timestamp: execution.Timestamp,
			Level:     models.LogLevelInfo,
			Message:   fmt.Sprintf("Execution started for flow %q", execution.FlowName),
		},
	}

	for i := range execution.StepsCompleted {
		logs = append(logs, models.LogEntry{
			Timestamp: execution.Timestamp.Add(time.Duration(i+1) * time.Second),
			Level:     models.LogLevelInfo,
			Message:   fmt.Sprintf("Step %d completed", i+1),
		})
	}

	switch execution.Status {
	case models.ExecutionStatusSuccess:
		logs = append(logs, models.LogEntry{
			Timestamp: execution.Timestamp.Add(time.Duration(execution.DurationMS) * time.Millisecond),
			Level:     models.LogLevelInfo,
			Message:   "Execution finished successfully",
		})
	case models.ExecutionStatusFailed:
		logs = append(logs, models.LogEntry{
			Timestamp: execution.Timestamp.Add(time.Duration(execution.DurationMS) * time.Millisecond),
			Level:     models.LogLevelError,
			Message:   execution.Error.Message,
		})
	case models.ExecutionStatusCanceled:
		logs = append(logs, models.LogEntry{
			Timestamp: execution.Timestamp.Add(time.Duration(execution.DurationMS) * time.Millisecond),
			Level:     models.LogLevelWarning,
			Message:   "Execution canceled",
		})
	case models.ExecutionStatusInProgress:
	}

	return logs
}
