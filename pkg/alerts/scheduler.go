package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/planstudio/flowhistory/pkg/models"
)

// Snapshotter is the store view the monitor evaluates against.
type Snapshotter interface {
	Scan(ctx context.Context) ([]*models.FlowExecution, error)
}

// Notifier receives the events of one evaluation cycle.
type Notifier func(ctx context.Context, fired []Event) error

// Monitor periodically evaluates a fixed rule set against the store and
// hands fired events to the notifier. Each cycle is stateless; the notifier
// is responsible for deduplicating repeated firings.
type Monitor struct {
	store    Snapshotter
	rules    []Rule
	notifier Notifier
	logger   *slog.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// NewMonitor creates a monitor over the given store and rules.
func NewMonitor(store Snapshotter, rules []Rule, notifier Notifier, logger *slog.Logger) (*Monitor, error) {
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
	}

	return &Monitor{
		store:    store,
		rules:    rules,
		notifier: notifier,
		logger:   logger,
		cron:     cron.New(),
		now:      time.Now,
	}, nil
}

// Start schedules evaluation at the given cron spec (standard 5-field
// format) and begins running.
func (m *Monitor) Start(ctx context.Context, spec string) error {
	_, err := m.cron.AddFunc(spec, func() {
		if err := m.RunOnce(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Alert evaluation cycle failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid evaluation schedule %q: %w", spec, err)
	}

	m.cron.Start()

	return nil
}

// Stop halts the schedule and waits for a running cycle to finish.
func (m *Monitor) Stop() {
	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
}

// RunOnce evaluates all rules against the current snapshot.
func (m *Monitor) RunOnce(ctx context.Context) error {
	snapshot, err := m.store.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan store: %w", err)
	}

	fired, err := Evaluate(snapshot, m.rules, m.now())
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Alert evaluation cycle finished",
		"records", len(snapshot), "rules", len(m.rules), "fired", len(fired))

	if len(fired) == 0 {
		return nil
	}

	return m.notifier(ctx, fired)
}
