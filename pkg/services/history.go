package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/planstudio/flowhistory/pkg/aggregate"
	"github.com/planstudio/flowhistory/pkg/alerts"
	"github.com/planstudio/flowhistory/pkg/eventbus"
	"github.com/planstudio/flowhistory/pkg/events"
	"github.com/planstudio/flowhistory/pkg/filter"
	"github.com/planstudio/flowhistory/pkg/models"
	"github.com/planstudio/flowhistory/pkg/pagination"
	"github.com/planstudio/flowhistory/pkg/store"
)

const (
	// DefaultPageSize matches the history table's page length.
	DefaultPageSize = 50

	// DefaultWindowDays is the trend chart's trailing window.
	DefaultWindowDays = 30
)

// History is the query and ingestion service over the execution store.
// All query operations are pure reads against a store snapshot; mutations go
// through IngestExecution and TransitionExecution only.
type History struct {
	store    store.ExecutionStore
	eventBus eventbus.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a History service.
type Option func(*History)

// WithEventBus publishes ingestion and transition lifecycle events.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(h *History) {
		h.eventBus = bus
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *History) {
		h.now = now
	}
}

// NewHistory creates the history service over the given store.
func NewHistory(executionStore store.ExecutionStore, logger *slog.Logger, opts ...Option) *History {
	h := &History{
		store:  executionStore,
		logger: logger,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// HealthCheck checks the health of the underlying store.
func (h *History) HealthCheck(ctx context.Context) (string, bool) {
	if h.store == nil {
		return "Execution store not initialized", false
	}

	if err := h.store.HealthCheck(ctx); err != nil {
		return "Execution store is unhealthy: " + err.Error(), false
	}

	return "Execution store is healthy", true
}

// ListExecutionsRequest contains the filter and page for a list query.
type ListExecutionsRequest struct {
	Filter   filter.Filter
	Page     int
	PageSize int
}

// ListExecutionsResponse is one page of matching executions in summary form.
type ListExecutionsResponse struct {
	Executions []models.ExecutionSummary `json:"executions"`
	Page       int                       `json:"page"`
	PageSize   int                       `json:"page_size"`
	TotalCount int                       `json:"total_count"`
	TotalPages int                       `json:"total_pages"`
}

// ListExecutions returns one page of the filtered history in the canonical
// order (timestamp descending, id ascending on ties).
func (h *History) ListExecutions(ctx context.Context, req ListExecutionsRequest) (*ListExecutionsResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}

	if req.PageSize == 0 {
		req.PageSize = DefaultPageSize
	}

	if req.Page < 1 || req.PageSize < 1 {
		return nil, fmt.Errorf("%w: page=%d page_size=%d", ErrInvalidPagination, req.Page, req.PageSize)
	}

	matched, err := h.filteredSnapshot(ctx, req.Filter)
	if err != nil {
		return nil, err
	}

	page, err := pagination.Paginate(matched, req.Page, req.PageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPagination, err)
	}

	summaries := make([]models.ExecutionSummary, 0, len(page.Items))
	for _, execution := range page.Items {
		summaries = append(summaries, execution.Summary())
	}

	return &ListExecutionsResponse{
		Executions: summaries,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
	}, nil
}

// GetExecution returns the full record, including steps, logs and payloads.
func (h *History) GetExecution(ctx context.Context, id string) (*models.FlowExecution, error) {
	if err := h.checkCanceled(ctx); err != nil {
		return nil, err
	}

	return h.store.Get(ctx, id)
}

// GetSummaryStats computes the headline statistics over the filtered set.
// An empty filtered set is a valid result, not an error.
func (h *History) GetSummaryStats(ctx context.Context, f filter.Filter) (*aggregate.Summary, error) {
	matched, err := h.filteredSnapshot(ctx, f)
	if err != nil {
		return nil, err
	}

	summary := aggregate.Summarize(matched)

	return &summary, nil
}

// GetTimeSeries buckets the whole store per calendar day over the trailing
// window. The time series is deliberately unfiltered: the trend chart shows
// global activity regardless of the active filter.
func (h *History) GetTimeSeries(ctx context.Context, windowDays int) ([]aggregate.Bucket, error) {
	if windowDays < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, windowDays)
	}

	if windowDays == 0 {
		windowDays = DefaultWindowDays
	}

	snapshot, err := h.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return aggregate.TimeSeries(snapshot, windowDays, h.now()), nil
}

// GetErrorAnalysis returns the recurring-error clusters over the whole
// store, largest first.
func (h *History) GetErrorAnalysis(ctx context.Context, topK int) ([]aggregate.ErrorCluster, error) {
	if topK < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}

	snapshot, err := h.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return aggregate.ErrorClusters(snapshot, topK), nil
}

// GetTopFailingFlows ranks flows by failure count over the whole store.
func (h *History) GetTopFailingFlows(ctx context.Context, topK int) ([]aggregate.FlowFailures, error) {
	if topK < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}

	snapshot, err := h.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return aggregate.TopFailingFlows(snapshot, topK), nil
}

// ListFlows returns the distinct flows observed in the history, most
// recently executed first.
func (h *History) ListFlows(ctx context.Context) ([]models.FlowRef, error) {
	snapshot, err := h.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return aggregate.Flows(snapshot), nil
}

// IngestExecution appends a new record to the store. Duplicate ids and
// records violating the model invariants are rejected; neither is retried
// here, the caller decides whether to resubmit a corrected payload.
func (h *History) IngestExecution(ctx context.Context, execution *models.FlowExecution) error {
	if err := h.store.Append(ctx, execution); err != nil {
		return err
	}

	h.publish(ctx, execution.ID, events.NewExecutionIngested(execution))

	return nil
}

// TransitionExecution moves a stored in_progress record to a terminal
// status, applying the patch.
func (h *History) TransitionExecution(ctx context.Context, id string, status models.ExecutionStatus, patch models.StatusPatch) (*models.FlowExecution, error) {
	updated, err := h.store.TransitionStatus(ctx, id, status, patch)
	if err != nil {
		return nil, err
	}

	h.publish(ctx, updated.ID, events.NewExecutionFinished(updated))

	return updated, nil
}

// PruneBefore evicts records older than cutoff and reports how many were
// removed.
func (h *History) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return h.store.PruneBefore(ctx, cutoff)
}

// EvaluateAlerts runs the given rules against the current store snapshot.
// Evaluation is stateless; deduplication across cycles belongs to the caller.
func (h *History) EvaluateAlerts(ctx context.Context, rules []alerts.Rule) ([]alerts.Event, error) {
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAlertRule, err)
		}
	}

	snapshot, err := h.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return alerts.Evaluate(snapshot, rules, h.now())
}

// ExportLogs renders an execution's log lines as plain text.
func (h *History) ExportLogs(ctx context.Context, id string) (string, error) {
	execution, err := h.GetExecution(ctx, id)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for _, entry := range execution.Logs {
		fmt.Fprintf(&b, "[%s] %s %s\n", entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message)
	}

	return b.String(), nil
}

// snapshot reads the full store with cancellation mapped to ErrCanceled.
func (h *History) snapshot(ctx context.Context) ([]*models.FlowExecution, error) {
	if err := h.checkCanceled(ctx); err != nil {
		return nil, err
	}

	snapshot, err := h.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan execution store: %w", err)
	}

	return snapshot, nil
}

// filteredSnapshot reads, filters and sorts the store into canonical order.
func (h *History) filteredSnapshot(ctx context.Context, f filter.Filter) ([]*models.FlowExecution, error) {
	snapshot, err := h.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	matched, err := filter.Apply(ctx, snapshot, f)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
		}

		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	return matched, nil
}

func (h *History) checkCanceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	return nil
}

// publish emits a lifecycle event when a bus is configured. Delivery is best
// effort: a publish failure never fails the ingest path.
func (h *History) publish(ctx context.Context, key string, event eventbus.Event) {
	if h.eventBus == nil {
		return
	}

	if err := h.eventBus.Publish(ctx, key, event); err != nil {
		h.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
