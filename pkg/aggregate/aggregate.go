// Package aggregate reduces execution history snapshots to summary
// statistics, daily time series, recurring-error clusters and per-flow
// failure rankings.
//
// Every function here is pure with respect to its input snapshot: repeated
// calls over unchanged input return identical output.
package aggregate

import (
	"sort"
	"time"

	"github.com/planstudio/flowhistory/pkg/models"
)

const (
	// DefaultErrorClusters is the cluster count when the caller passes 0.
	DefaultErrorClusters = 5

	// DefaultFailingFlows is the ranking size when the caller passes 0.
	DefaultFailingFlows = 3
)

// Summary holds the headline statistics over a filtered set.
type Summary struct {
	Total         int     `json:"total"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Summarize computes the summary statistics for a set of executions.
// An empty set yields the zero summary, which is a valid result.
func Summarize(executions []*models.FlowExecution) Summary {
	var summary Summary

	var totalDuration int64

	for _, execution := range executions {
		summary.Total++
		totalDuration += execution.DurationMS

		switch execution.Status {
		case models.ExecutionStatusSuccess:
			summary.Successful++
		case models.ExecutionStatusFailed:
			summary.Failed++
		case models.ExecutionStatusInProgress, models.ExecutionStatusCanceled:
		}
	}

	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Successful) / float64(summary.Total)
		summary.AvgDurationMS = float64(totalDuration) / float64(summary.Total)
	}

	return summary
}

// Bucket is one calendar day of aggregated counts.
type Bucket struct {
	Date       time.Time `json:"date"`
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
}

// TimeSeries buckets executions per calendar day for the trailing days
// window anchored at now, oldest bucket first. Days without executions
// produce zero-count buckets, so the result always has exactly days entries.
func TimeSeries(executions []*models.FlowExecution, days int, now time.Time) []Bucket {
	if days <= 0 {
		return []Bucket{}
	}

	today := midnight(now)
	first := today.AddDate(0, 0, -(days - 1))

	buckets := make([]Bucket, days)
	for i := range buckets {
		buckets[i].Date = first.AddDate(0, 0, i)
	}

	for _, execution := range executions {
		day := midnight(execution.Timestamp.In(now.Location()))

		offset := daysBetween(first, day)
		if offset < 0 || offset >= days {
			continue
		}

		buckets[offset].Total++

		switch execution.Status {
		case models.ExecutionStatusSuccess:
			buckets[offset].Successful++
		case models.ExecutionStatusFailed:
			buckets[offset].Failed++
		case models.ExecutionStatusInProgress, models.ExecutionStatusCanceled:
		}
	}

	return buckets
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b. Both must be midnights in
// the same location; AddDate-based stepping keeps DST days exact.
func daysBetween(a, b time.Time) int {
	if b.Before(a) {
		return -int(a.Sub(b).Hours()/24 + 0.5)
	}

	return int(b.Sub(a).Hours()/24 + 0.5)
}

// ErrorCluster groups executions sharing an identical error message.
type ErrorCluster struct {
	Message        string    `json:"message"`
	Count          int       `json:"count"`
	FlowNames      []string  `json:"flow_names"`
	LastOccurrence time.Time `json:"last_occurrence"`
}

// ErrorClusters groups failed executions by exact error message and returns
// the top clusters by count, ties broken by most recent occurrence. topK 0
// means DefaultErrorClusters.
func ErrorClusters(executions []*models.FlowExecution, topK int) []ErrorCluster {
	if topK == 0 {
		topK = DefaultErrorClusters
	}

	type clusterData struct {
		count          int
		flowNames      map[string]struct{}
		lastOccurrence time.Time
	}

	byMessage := make(map[string]*clusterData)

	for _, execution := range executions {
		message := execution.ErrorMessage()
		if message == "" {
			continue
		}

		data, exists := byMessage[message]
		if !exists {
			data = &clusterData{flowNames: make(map[string]struct{})}
			byMessage[message] = data
		}

		data.count++
		data.flowNames[execution.FlowName] = struct{}{}

		if execution.Timestamp.After(data.lastOccurrence) {
			data.lastOccurrence = execution.Timestamp
		}
	}

	clusters := make([]ErrorCluster, 0, len(byMessage))

	for message, data := range byMessage {
		flowNames := make([]string, 0, len(data.flowNames))
		for name := range data.flowNames {
			flowNames = append(flowNames, name)
		}

		sort.Strings(flowNames)

		clusters = append(clusters, ErrorCluster{
			Message:        message,
			Count:          data.count,
			FlowNames:      flowNames,
			LastOccurrence: data.lastOccurrence,
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Count != clusters[j].Count {
			return clusters[i].Count > clusters[j].Count
		}

		if !clusters[i].LastOccurrence.Equal(clusters[j].LastOccurrence) {
			return clusters[i].LastOccurrence.After(clusters[j].LastOccurrence)
		}

		return clusters[i].Message < clusters[j].Message
	})

	if len(clusters) > topK {
		clusters = clusters[:topK]
	}

	return clusters
}

// FlowFailures ranks one flow by its failure count.
type FlowFailures struct {
	FlowID      string `json:"flow_id"`
	FlowName    string `json:"flow_name"`
	FailedCount int    `json:"failed_count"`
	TotalCount  int    `json:"total_count"`
}

// TopFailingFlows groups executions by flow and returns the flows with the
// most failures, ties broken by flow name ascending. Flows without failures
// are dropped. topK 0 means DefaultFailingFlows.
func TopFailingFlows(executions []*models.FlowExecution, topK int) []FlowFailures {
	if topK == 0 {
		topK = DefaultFailingFlows
	}

	byFlow := make(map[string]*FlowFailures)

	for _, execution := range executions {
		flow, exists := byFlow[execution.FlowID]
		if !exists {
			flow = &FlowFailures{FlowID: execution.FlowID, FlowName: execution.FlowName}
			byFlow[execution.FlowID] = flow
		}

		flow.TotalCount++

		if execution.Status == models.ExecutionStatusFailed {
			flow.FailedCount++
		}
	}

	flows := make([]FlowFailures, 0, len(byFlow))

	for _, flow := range byFlow {
		if flow.FailedCount == 0 {
			continue
		}

		flows = append(flows, *flow)
	}

	sort.Slice(flows, func(i, j int) bool {
		if flows[i].FailedCount != flows[j].FailedCount {
			return flows[i].FailedCount > flows[j].FailedCount
		}

		return flows[i].FlowName < flows[j].FlowName
	})

	if len(flows) > topK {
		flows = flows[:topK]
	}

	return flows
}

// Flows lists the distinct flows observed in the history, most recently
// executed first.
func Flows(executions []*models.FlowExecution) []models.FlowRef {
	byID := make(map[string]*models.FlowRef)

	for _, execution := range executions {
		flow, exists := byID[execution.FlowID]
		if !exists {
			byID[execution.FlowID] = &models.FlowRef{
				FlowID:         execution.FlowID,
				FlowName:       execution.FlowName,
				LastExecutedAt: execution.Timestamp,
			}

			continue
		}

		if execution.Timestamp.After(flow.LastExecutedAt) {
			flow.LastExecutedAt = execution.Timestamp
			flow.FlowName = execution.FlowName
		}
	}

	flows := make([]models.FlowRef, 0, len(byID))
	for _, flow := range byID {
		flows = append(flows, *flow)
	}

	sort.Slice(flows, func(i, j int) bool {
		if !flows[i].LastExecutedAt.Equal(flows[j].LastExecutedAt) {
			return flows[i].LastExecutedAt.After(flows[j].LastExecutedAt)
		}

		return flows[i].FlowID < flows[j].FlowID
	})

	return flows
}
