package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
)

// Thresholds the recommendation pass reacts to.
const (
	lowSuccessRate            = 0.8
	slowExecutionMs           = 60_000
	maxHealthyFailurePoints   = 2
	lowIntegrationSuccessRate = 0.9
)

// updateAnalytics folds one terminated run into the workflow's rolling
// aggregate and rebuilds its recommendations. Means update incrementally
// so no per-execution history accumulates.
func (e *Engine) updateAnalytics(ctx context.Context, execution *models.WorkflowExecution, def *models.WorkflowDefinition) {
	analytics, err := e.store.AnalyticsByWorkflowID(ctx, execution.WorkflowID)
	if err != nil {
		if !persistence.IsAnalyticsNotFound(err) {
			e.logger.ErrorContext(ctx, "Failed to load analytics",
				"workflow_id", execution.WorkflowID, "error", err)

			return
		}

		analytics = models.NewWorkflowAnalytics(execution.WorkflowID)
	}

	analytics.TotalExecutions++

	if execution.Status == models.ExecutionStatusCompleted {
		analytics.SuccessfulExecutions++
	} else {
		analytics.FailedExecutions++
	}

	analytics.AvgExecutionTimeMs = incrementalMean(
		analytics.AvgExecutionTimeMs,
		analytics.TotalExecutions,
		float64(execution.Duration().Milliseconds()),
	)

	if def != nil {
		foldIntegrationUsage(analytics, execution, def)
	}

	foldFailurePoints(analytics, execution, def)

	analytics.Recommendations = recommendations(analytics)
	analytics.LastUpdated = time.Now().UTC()

	if err := e.store.SaveAnalytics(ctx, analytics); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist analytics",
			"workflow_id", execution.WorkflowID, "error", err)
	}
}

// foldIntegrationUsage records the outcome of every top-level
// integration_action step from this run.
func foldIntegrationUsage(analytics *models.WorkflowAnalytics, execution *models.WorkflowExecution, def *models.WorkflowDefinition) {
	for _, step := range def.Steps {
		if step.Type != models.StepTypeIntegrationAction || step.IntegrationID == "" {
			continue
		}

		record := execution.StepExecutions[step.ID]
		if record == nil {
			continue
		}

		usage := analytics.Integrations[step.IntegrationID]
		if usage == nil {
			usage = &models.IntegrationUsage{IntegrationID: step.IntegrationID}
			analytics.Integrations[step.IntegrationID] = usage
		}

		switch record.Status {
		case models.StepStatusCompleted:
			usage.Invocations++
			usage.Successes++
		case models.StepStatusFailed:
			usage.Invocations++
			usage.Failures++
		default:
		}
	}
}

func foldFailurePoints(analytics *models.WorkflowAnalytics, execution *models.WorkflowExecution, def *models.WorkflowDefinition) {
	for _, record := range execution.StepExecutions {
		if record.Status != models.StepStatusFailed {
			continue
		}

		point := analytics.FailurePoints[record.StepID]
		if point == nil {
			point = &models.FailurePoint{StepID: record.StepID}

			if def != nil {
				if step := def.StepByID(record.StepID); step != nil {
					point.StepName = step.Name
				}
			}

			analytics.FailurePoints[record.StepID] = point
		}

		point.ErrorCount++
		point.LastError = record.Error
		point.LastSeen = time.Now().UTC()
	}
}

// recommendations derives advisory strings from the aggregate. The list is
// rebuilt from scratch on every update so stale advice disappears once the
// numbers recover.
func recommendations(analytics *models.WorkflowAnalytics) []string {
	recs := make([]string, 0)

	if analytics.SuccessRate() < lowSuccessRate {
		recs = append(recs, fmt.Sprintf(
			"Success rate is %.0f%%; review the most frequent failure points",
			analytics.SuccessRate()*100))
	}

	if analytics.AvgExecutionTimeMs > slowExecutionMs {
		recs = append(recs,
			"Average execution time exceeds 60s; consider running independent steps in parallel")
	}

	if len(analytics.FailurePoints) > maxHealthyFailurePoints {
		recs = append(recs, fmt.Sprintf(
			"%d steps have recorded failures; review workflow reliability",
			len(analytics.FailurePoints)))
	}

	ids := make([]string, 0, len(analytics.Integrations))
	for id := range analytics.Integrations {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		usage := analytics.Integrations[id]
		if usage.Invocations > 0 && usage.SuccessRate() < lowIntegrationSuccessRate {
			recs = append(recs, fmt.Sprintf(
				"Integration %s success rate is %.0f%%; check its health and rate limits",
				id, usage.SuccessRate()*100))
		}
	}

	return recs
}

// incrementalMean folds one more sample into a running mean. count is the
// total including the new sample.
func incrementalMean(mean float64, count int64, sample float64) float64 {
	if count <= 0 {
		return sample
	}

	return mean + (sample-mean)/float64(count)
}
