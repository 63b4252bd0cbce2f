package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/planstudio/flowhistory/pkg/alerts"
	"github.com/planstudio/flowhistory/pkg/eventbus"
	"github.com/planstudio/flowhistory/pkg/events"
	"github.com/planstudio/flowhistory/pkg/models"
	"github.com/planstudio/flowhistory/pkg/receivers/queue"
	"github.com/planstudio/flowhistory/pkg/services"
	"github.com/planstudio/flowhistory/pkg/store"
)

// Config carries the monitor's startup parameters.
type Config struct {
	RulesFile     string
	Schedule      string
	QueueAddr     string
	QueuePassword string
	QueueName     string
}

// MonitorService runs scheduled alert evaluation and, when a queue address
// is configured, ingests execution records pushed through Redis.
type MonitorService struct {
	id             string
	executionStore store.ExecutionStore
	eventBus       eventbus.EventBus
	historyService *services.History
	logger         *slog.Logger
	config         Config
}

func NewMonitorService(
	id string,
	executionStore store.ExecutionStore,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	config Config,
) *MonitorService {
	return &MonitorService{
		id:             id,
		executionStore: executionStore,
		eventBus:       eventBus,
		historyService: services.NewHistory(executionStore, logger, services.WithEventBus(eventBus)),
		logger:         logger,
		config:         config,
	}
}

// Run blocks until the context is cancelled or a termination signal arrives.
func (m *MonitorService) Run(ctx context.Context) error {
	rules, err := alerts.LoadRules(m.config.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load alert rules: %w", err)
	}

	m.logger.InfoContext(ctx, "Loaded alert rules", "rules", len(rules))

	monitor, err := alerts.NewMonitor(m.executionStore, rules, m.notify, m.logger)
	if err != nil {
		return fmt.Errorf("failed to create alert monitor: %w", err)
	}

	err = monitor.Start(ctx, m.config.Schedule)
	if err != nil {
		return err
	}

	defer monitor.Stop()

	err = m.eventBus.Handle(events.ExecutionFinishedEvent, m.handleExecutionFinished)
	if err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	err = m.eventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	var receiver *queue.Receiver

	if m.config.QueueAddr != "" {
		receiver = queue.NewReceiver(m.config.QueueAddr, m.config.QueuePassword, 0, m.config.QueueName, m.logger)

		err = receiver.Start(ctx, m.historyService)
		if err != nil {
			return fmt.Errorf("failed to start queue receiver: %w", err)
		}
	}

	m.logger.InfoContext(ctx, "Flowhistory Monitor started", "schedule", m.config.Schedule)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		m.logger.InfoContext(ctx, "Received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		m.logger.InfoContext(ctx, "Context cancelled, shutting down")
	}

	if receiver != nil {
		if err := receiver.Stop(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Failed to stop queue receiver", "error", err)
		}
	}

	return nil
}

// handleExecutionFinished logs terminal executions reported on the bus so
// failures are visible between evaluation cycles.
func (m *MonitorService) handleExecutionFinished(ctx context.Context, event any) error {
	finished, ok := event.(*events.ExecutionFinished)
	if !ok {
		return fmt.Errorf("unexpected event payload: %T", event)
	}

	if finished.Status == models.ExecutionStatusFailed {
		m.logger.WarnContext(ctx, "Execution failed",
			"execution_id", finished.ExecutionID, "flow_id", finished.FlowID,
			"duration_ms", finished.DurationMS)

		return nil
	}

	m.logger.InfoContext(ctx, "Execution finished",
		"execution_id", finished.ExecutionID, "flow_id", finished.FlowID,
		"status", finished.Status)

	return nil
}

// notify publishes every fired alert on the event bus.
func (m *MonitorService) notify(ctx context.Context, fired []alerts.Event) error {
	for _, alertEvent := range fired {
		event := events.NewAlertTriggered(alertEvent)

		err := m.eventBus.Publish(ctx, alertEvent.RuleID, event)
		if err != nil {
			m.logger.ErrorContext(ctx, "Failed to publish alert event",
				"rule_id", alertEvent.RuleID, "error", err)
		}
	}

	return nil
}
