// Package filter reduces the execution store to records matching a filter
// specification and establishes the canonical presentation order.
package filter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/planstudio/flowhistory/pkg/models"
)

// ErrInvalidDateRange indicates a date range with from after to.
var ErrInvalidDateRange = errors.New("invalid date range: from is after to")

// checkEvery bounds how many records are matched between cancellation checks.
const checkEvery = 1024

// Filter selects a subset of execution records. All active predicates are
// combined with logical AND; zero-valued fields are inactive.
type Filter struct {
	// From and To bound the execution timestamp as [From, To).
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	// Status matches exactly when set.
	Status *models.ExecutionStatus `json:"status,omitempty"`

	// FlowID matches exactly when non-empty.
	FlowID string `json:"flow_id,omitempty"`

	// FreeText matches case-insensitively against the execution id, flow
	// name, client name and error message; any one hit is enough.
	FreeText string `json:"free_text,omitempty"`
}

// Validate rejects malformed filters.
func (f Filter) Validate() error {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return fmt.Errorf("%w (from=%s, to=%s)", ErrInvalidDateRange, f.From.Format(time.RFC3339), f.To.Format(time.RFC3339))
	}

	if f.Status != nil && !f.Status.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidExecutionStatus, *f.Status)
	}

	return nil
}

// Matches reports whether the execution satisfies every active predicate.
func (f Filter) Matches(execution *models.FlowExecution) bool {
	if f.From != nil && execution.Timestamp.Before(*f.From) {
		return false
	}

	if f.To != nil && !execution.Timestamp.Before(*f.To) {
		return false
	}

	if f.Status != nil && execution.Status != *f.Status {
		return false
	}

	if f.FlowID != "" && execution.FlowID != f.FlowID {
		return false
	}

	if f.FreeText != "" && !matchesFreeText(execution, f.FreeText) {
		return false
	}

	return true
}

func matchesFreeText(execution *models.FlowExecution, query string) bool {
	needle := strings.ToLower(query)

	if strings.Contains(strings.ToLower(execution.ID), needle) {
		return true
	}

	if strings.Contains(strings.ToLower(execution.FlowName), needle) {
		return true
	}

	if execution.Client != nil && strings.Contains(strings.ToLower(execution.Client.Name), needle) {
		return true
	}

	if execution.Error != nil && strings.Contains(strings.ToLower(execution.Error.Message), needle) {
		return true
	}

	return false
}

// Apply filters the snapshot and sorts the result into the canonical order:
// timestamp descending, ties broken by id ascending. Every downstream
// consumer (pagination, display) relies on this ordering.
func Apply(ctx context.Context, executions []*models.FlowExecution, f Filter) ([]*models.FlowExecution, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	matched := make([]*models.FlowExecution, 0, len(executions))

	for i, execution := range executions {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if f.Matches(execution) {
			matched = append(matched, execution)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID < matched[j].ID
		}

		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	return matched, nil
}
