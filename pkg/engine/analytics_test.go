package engine

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence/memory"
)

func TestIncrementalMean(t *testing.T) {
	mean := incrementalMean(0, 1, 120)
	assert.InDelta(t, 120, mean, 0.0001)

	mean = incrementalMean(mean, 2, 60)
	assert.InDelta(t, 90, mean, 0.0001)

	mean = incrementalMean(mean, 3, 90)
	assert.InDelta(t, 90, mean, 0.0001)

	assert.InDelta(t, 42, incrementalMean(100, 0, 42), 0.0001)
}

func TestRecommendationsHealthyAggregate(t *testing.T) {
	analytics := models.NewWorkflowAnalytics("wf-healthy")
	analytics.TotalExecutions = 10
	analytics.SuccessfulExecutions = 9
	analytics.FailedExecutions = 1
	analytics.AvgExecutionTimeMs = 30_000
	analytics.Integrations["slack"] = &models.IntegrationUsage{
		IntegrationID: "slack", Invocations: 10, Successes: 10,
	}

	assert.Empty(t, recommendations(analytics))
}

func TestRecommendationsDegradedAggregate(t *testing.T) {
	analytics := models.NewWorkflowAnalytics("wf-degraded")
	analytics.TotalExecutions = 10
	analytics.SuccessfulExecutions = 5
	analytics.FailedExecutions = 5
	analytics.AvgExecutionTimeMs = 61_000

	for i := range 3 {
		id := fmt.Sprintf("step-%d", i)
		analytics.FailurePoints[id] = &models.FailurePoint{StepID: id, ErrorCount: 1}
	}

	analytics.Integrations["shopify"] = &models.IntegrationUsage{
		IntegrationID: "shopify", Invocations: 10, Successes: 5, Failures: 5,
	}
	analytics.Integrations["idle"] = &models.IntegrationUsage{IntegrationID: "idle"}

	recs := recommendations(analytics)
	require.Len(t, recs, 4)
	assert.Contains(t, recs[0], "Success rate is 50%")
	assert.Contains(t, recs[1], "exceeds 60s")
	assert.Contains(t, recs[2], "3 steps have recorded failures")
	assert.Contains(t, recs[3], "Integration shopify success rate is 50%")
}

func TestUpdateAnalyticsFoldsRuns(t *testing.T) {
	engine := &Engine{
		store:  memory.NewPersistence(),
		logger: slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}

	def := definition("wf-fold", integrationStep("sync", "crm", "sync"))

	run := func(status models.ExecutionStatus, durationMs int64, stepStatus models.StepStatus, stepError string) {
		started := time.Now().UTC().Add(-time.Duration(durationMs) * time.Millisecond)
		finished := started.Add(time.Duration(durationMs) * time.Millisecond)

		execution := &models.WorkflowExecution{
			ID:         fmt.Sprintf("exec-%d", time.Now().UnixNano()),
			WorkflowID: "wf-fold",
			Status:     status,
			StartedAt:  &started,
			FinishedAt: &finished,
			StepExecutions: map[string]*models.StepExecution{
				"sync": {StepID: "sync", Status: stepStatus, Error: stepError, Attempts: 1},
			},
		}

		engine.updateAnalytics(t.Context(), execution, def)
	}

	run(models.ExecutionStatusCompleted, 100, models.StepStatusCompleted, "")

	analytics, err := engine.store.AnalyticsByWorkflowID(t.Context(), "wf-fold")
	require.NoError(t, err)
	assert.Equal(t, int64(1), analytics.TotalExecutions)
	assert.Equal(t, int64(1), analytics.SuccessfulExecutions)
	assert.InDelta(t, 100, analytics.AvgExecutionTimeMs, 1)
	require.Contains(t, analytics.Integrations, "crm")
	assert.Equal(t, int64(1), analytics.Integrations["crm"].Successes)
	assert.Empty(t, analytics.FailurePoints)
	assert.Empty(t, analytics.Recommendations)

	run(models.ExecutionStatusFailed, 300, models.StepStatusFailed, "api down")

	analytics, err = engine.store.AnalyticsByWorkflowID(t.Context(), "wf-fold")
	require.NoError(t, err)
	assert.Equal(t, int64(2), analytics.TotalExecutions)
	assert.Equal(t, int64(1), analytics.FailedExecutions)
	assert.InDelta(t, 200, analytics.AvgExecutionTimeMs, 1)
	assert.Equal(t, int64(1), analytics.Integrations["crm"].Failures)

	require.Contains(t, analytics.FailurePoints, "sync")
	point := analytics.FailurePoints["sync"]
	assert.Equal(t, int64(1), point.ErrorCount)
	assert.Equal(t, "api down", point.LastError)
	assert.Equal(t, "sync", point.StepName)
	assert.False(t, point.LastSeen.IsZero())

	// Success rate 50% and a crm failure rate below threshold.
	require.Len(t, analytics.Recommendations, 2)
	assert.Contains(t, analytics.Recommendations[0], "Success rate is 50%")
	assert.Contains(t, analytics.Recommendations[1], "Integration crm success rate is 50%")

	// Advice is rebuilt, not appended; recovered numbers clear it.
	run(models.ExecutionStatusCompleted, 200, models.StepStatusCompleted, "")
	run(models.ExecutionStatusCompleted, 200, models.StepStatusCompleted, "")
	run(models.ExecutionStatusCompleted, 200, models.StepStatusCompleted, "")
	run(models.ExecutionStatusCompleted, 200, models.StepStatusCompleted, "")
	run(models.ExecutionStatusCompleted, 200, models.StepStatusCompleted, "")
	run(models.ExecutionStatusCompleted, 200, models.StepStatusCompleted, "")

	analytics, err = engine.store.AnalyticsByWorkflowID(t.Context(), "wf-fold")
	require.NoError(t, err)
	assert.Equal(t, int64(8), analytics.TotalExecutions)
	assert.InDelta(t, 0.875, analytics.SuccessRate(), 0.0001)

	for _, rec := range analytics.Recommendations {
		assert.NotContains(t, rec, "Success rate")
	}
}
