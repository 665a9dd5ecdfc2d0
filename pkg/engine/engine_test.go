package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/integration"
	"github.com/weftlabs/weft/pkg/mocks"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence/memory"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/registry"
	"github.com/weftlabs/weft/pkg/workflow"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

type engineHarness struct {
	engine       *Engine
	store        *memory.Persistence
	eventBus     *mocks.MockEventBus
	integrations *integration.Registry
	ai           *mocks.MockAIProvider
}

// testConfig keeps retries and metrics out of the way unless a test opts
// back in.
func testConfig() Config {
	config := DefaultConfig()
	config.MaxConcurrentExecutions = 4
	config.DefaultRetryAttempts = 1
	config.DefaultTimeoutMs = 5000
	config.AutoRetryFailures = false
	config.EnableMetrics = false

	return config
}

func newEngineHarness(t *testing.T, config Config, adapter protocol.IntegrationAdapter) *engineHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := memory.NewPersistence()

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	integrations := integration.NewRegistry(logger, eventBus, adapter)
	steps := registry.NewRegistry(logger)
	workflows := workflow.NewRegistry(logger, store, eventBus, steps, config.MaxStepsPerWorkflow, config.EnableCaching)

	eng := New(config, logger, store, eventBus, integrations, workflows, steps, nil)

	ai := &mocks.MockAIProvider{}

	steps.RegisterDefaultSteps(registry.Dependencies{
		Integrations: integrations,
		AI:           ai,
		Runner:       eng,
	})

	require.NoError(t, eng.Start(context.Background()))

	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		eng.Stop(stopCtx)
	})

	return &engineHarness{
		engine:       eng,
		store:        store,
		eventBus:     eventBus,
		integrations: integrations,
		ai:           ai,
	}
}

func (h *engineHarness) awaitStatus(t *testing.T, id string, status models.ExecutionStatus) *models.WorkflowExecution {
	t.Helper()

	var execution *models.WorkflowExecution

	require.Eventually(t, func() bool {
		loaded, err := h.store.ExecutionByID(context.Background(), id)
		if err != nil {
			return false
		}

		execution = loaded

		return execution.Status == status
	}, waitFor, tick, "execution %s never reached status %s", id, status)

	return execution
}

func (h *engineHarness) awaitStepStatus(t *testing.T, id, stepID string, status models.StepStatus) {
	t.Helper()

	require.Eventually(t, func() bool {
		execution, err := h.store.ExecutionByID(context.Background(), id)
		if err != nil {
			return false
		}

		record, ok := execution.StepExecutions[stepID]

		return ok && record.Status == status
	}, waitFor, tick, "step %s never reached status %s", stepID, status)
}

func definition(id string, steps ...*models.WorkflowStep) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:      id,
		Name:    id + " workflow",
		Steps:   steps,
		Enabled: true,
	}
}

func waitStep(id string, durationMs int, deps ...string) *models.WorkflowStep {
	return &models.WorkflowStep{
		ID:         id,
		Name:       id,
		Type:       models.StepTypeWait,
		Parameters: map[string]any{"duration_ms": durationMs},
		DependsOn:  deps,
	}
}

func notificationStep(id string, deps ...string) *models.WorkflowStep {
	return &models.WorkflowStep{
		ID:   id,
		Name: id,
		Type: models.StepTypeNotification,
		Parameters: map[string]any{
			"channel": "ops",
			"message": id + " fired",
		},
		DependsOn: deps,
	}
}

func integrationStep(id, integrationID, action string, deps ...string) *models.WorkflowStep {
	return &models.WorkflowStep{
		ID:            id,
		Name:          id,
		Type:          models.StepTypeIntegrationAction,
		IntegrationID: integrationID,
		Action:        action,
		DependsOn:     deps,
		Retry:         &models.RetryPolicy{MaxAttempts: 1},
	}
}

func capability(id string) *models.IntegrationCapability {
	return &models.IntegrationCapability{
		ID:      id,
		Name:    id,
		Actions: []string{"fetch", "sync", "charge", "send_message"},
	}
}

func TestExecuteWorkflowNotFound(t *testing.T) {
	h := newEngineHarness(t, testConfig(), nil)

	_, err := h.engine.ExecuteWorkflow(t.Context(), "ghost", "manual", nil)
	require.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.True(t, IsNotFound(err))
}

func TestExecuteWorkflowDisabled(t *testing.T) {
	h := newEngineHarness(t, testConfig(), nil)

	def := definition("wf-disabled", notificationStep("notify"))
	def.Enabled = false
	require.NoError(t, h.engine.RegisterWorkflow(t.Context(), def))

	_, err := h.engine.ExecuteWorkflow(t.Context(), "wf-disabled", "manual", nil)
	require.ErrorIs(t, err, ErrWorkflowDisabled)
}

func TestExecuteWorkflowIntegrationGate(t *testing.T) {
	h := newEngineHarness(t, testConfig(), nil)

	def := definition("wf-gated", integrationStep("pull", "salesforce", "fetch"))
	require.NoError(t, h.engine.RegisterWorkflow(t.Context(), def))

	_, err := h.engine.ExecuteWorkflow(t.Context(), "wf-gated", "manual", nil)
	require.ErrorIs(t, err, ErrIntegrationUnavailable)
	assert.True(t, IsUnavailable(err))

	require.NoError(t, h.engine.RegisterIntegration(t.Context(), capability("salesforce")))

	id, err := h.engine.ExecuteWorkflow(t.Context(), "wf-gated", "manual", nil)
	require.NoError(t, err)

	h.awaitStatus(t, id, models.ExecutionStatusCompleted)

	// An integration marked unavailable blocks new admissions again.
	unavailable := false
	h.engine.UpdateIntegrationState(t.Context(), "salesforce", integration.StateUpdate{Available: &unavailable})

	_, err = h.engine.ExecuteWorkflow(t.Context(), "wf-gated", "manual", nil)
	require.ErrorIs(t, err, ErrIntegrationUnavailable)
}

func TestExecutionCompletesAndMergesResults(t *testing.T) {
	h := newEngineHarness(t, testConfig(), nil)

	shape := &models.WorkflowStep{
		ID:   "shape",
		Name: "shape",
		Type: models.StepTypeDataTransform,
		Parameters: map[string]any{
			"transform_type": "map_fields",
			"config": map[string]any{
				"mappings": map[string]any{"customer_name": "user.name"},
			},
		},
	}
	check := &models.WorkflowStep{
		ID:   "check",
		Name: "check",
		Type: models.StepTypeCondition,
		Parameters: map[string]any{
			"field":    "customer_name",
			"operator": "equals",
			"value":    "Ada",
		},
		DependsOn: []string{"shape"},
	}

	require.NoError(t, h.engine.RegisterWorkflow(t.Context(), definition("wf-merge", shape, check)))

	id, err := h.engine.ExecuteWorkflow(t.Context(), "wf-merge", "manual", map[string]any{
		"user": map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.Contains(t, id, "exec-")

	execution := h.awaitStatus(t, id, models.ExecutionStatusCompleted)

	assert.Equal(t, "Ada", execution.Variables["customer_name"])
	assert.Equal(t, true, execution.Variables["result"])

	require.Len(t, execution.StepExecutions, 2)
	assert.Equal(t, models.StepStatusCompleted, execution.StepExecutions["shape"].Status)
	assert.Equal(t, models.StepStatusCompleted, execution.StepExecutions["check"].Status)
	assert.Equal(t, 1, execution.StepExecutions["shape"].Attempts)
	assert.NotNil(t, execution.FinishedAt)
	assert.Equal(t, "manual", execution.Metadata["triggered_by"])

	analytics, err := h.engine.GetWorkflowAnalytics(t.Context(), "wf-merge")
	require.NoError(t, err)
	assert.Equal(t, int64(1), analytics.TotalExecutions)
	assert.Equal(t, int64(1), analytics.SuccessfulExecutions)

	assert.Len(t, h.eventBus.PublishedEvents(events.ExecutionQueuedEvent), 1)
	assert.Len(t, h.eventBus.PublishedEvents(events.ExecutionStartedEvent), 1)
	assert.Len(t, h.eventBus.PublishedEvents(events.ExecutionCompletedEvent), 1)
}

func TestConcurrencyCap(t *testing.T) {
	config := testConfig()
	config.MaxConcurrentExecutions = 2

	h := newEngineHarness(t, config, nil)

	require.NoError(t, h.engine.RegisterWorkflow(t.Context(), definition("wf-slow", waitStep("nap", 300))))

	ids := make([]string, 0, 5)

	for range 5 {
		id, err := h.engine.ExecuteWorkflow(t.Context(), "wf-slow", "manual", nil)
		require.NoError(t, err)

		ids = append(ids, id)
	}

	require.Eventually(t, func() bool {
		health := h.engine.GetSystemHealth(context.Background())

		return health.ActiveExecutions == 2 && health.QueuedExecutions == 3
	}, waitFor, tick, "cap of 2 never enforced")

	active, err := h.engine.GetActiveExecutions(t.Context())
	require.NoError(t, err)
	assert.Len(t, active, 2)

	for _, id := range ids {
		h.awaitStatus(t, id, models.ExecutionStatusCompleted)
	}
}

func TestCancelQueuedExecutionRunsNoSteps(t *testing.T) {
	config := testConfig()
	config.MaxConcurrentExecutions = 1

	h := newEngineHarness(t, config, nil)

	require.NoError(t, h.engine.RegisterWorkflow(t.Context(), definition("wf-queue", waitStep("nap", 400))))

	first, err := h.engine.ExecuteWorkflow(t.Context(), "wf-queue", "manual", nil)
	require.NoError(t, err)

	second, err := h.engine.ExecuteWorkflow(t.Context(), "wf-queue", "manual", nil)
	require.NoError(t, err)

	require.NoError(t, h.engine.CancelExecution(t.Context(), second))

	h.awaitStatus(t, first, models.ExecutionStatusCompleted)

	cancelled := h.awaitStatus(t, second, models.ExecutionStatusCancelled)
	assert.Equal(t, 0, cancelled.StepExecutions["nap"].Attempts)
	assert.NotNil(t, cancelled.FinishedAt)
}

func TestCancelFinishedExecutionFails(t *testing.T) {
	h := newEngineHarness(t, testConfig(), nil)

	require.NoError(t, h.engine.RegisterWorkflow(t.Context(), definition("wf-done", notificationStep("notify"))))

	id, err := h.engine.ExecuteWorkflow(t.Context(), "wf-done", "manual", nil)
	require.NoError(t, err)

	h.awaitStatus(t, id, models.ExecutionStatusCompleted)

	err = h.engine.CancelExecution(t.Context(), id)
	require.ErrorIs(t, err, ErrExecutionFinished)

	err = h.engine.CancelExecution(t.Context(), "exec-missing")
	require.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestPauseAndResume(t *testing.T) {
	h := newEngineHarness(t, testConfig(), nil)

	def := definition("wf-pausable",
		waitStep("w1", 50),
		waitStep("w2", 400, "w1"),
		waitStep("w3", 50, "w2"),
	)
	require.NoError(t, h.engine.RegisterWorkflow(t.Context(), def))

	id, err := h.engine.ExecuteWorkflow(t.Context(), "wf-pausable", "manual", nil)
	require.NoError(t, err)

	h.awaitStepStatus(t, id, "w1", models.StepStatusCompleted)

	require.NoError(t, h.engine.PauseExecution(t.Context(), id))

	paused := h.awaitStatus(t, id, models.ExecutionStatusPaused)
	assert.Equal(t, models.StepStatusCompleted, paused.StepExecutions["w1"].Status)
	assert.Equal(t, models.StepStatusPending, paused.StepExecutions["w3"].Status)

	// Resuming a non-paused execution is rejected.
	require.NoError(t, h.engine.ResumeExecution(t.Context(), id))
	err = h.engine.ResumeExecution(t.Context(), id)
	require.ErrorIs(t, err, ErrExecutionNotPaused)

	resumed := h.awaitStatus(t, id, models.ExecutionStatusCompleted)

	// Completed steps kept their single attempt across the resume.
	assert.Equal(t, 1, resumed.StepExecutions["w1"].Attempts)
	assert.Equal(t, 1, resumed.StepExecutions["w2"].Attempts)
	assert.Equal(t, 1, resumed.StepExecutions["w3"].Attempts)
}

func TestSystemHealthCounts(t *testing.T) {
	h := newEngineHarness(t, testConfig(), nil)

	health := h.engine.GetSystemHealth(t.Context())
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.StoreHealthy)
	assert.Zero(t, health.RegisteredWorkflows)
	assert.Zero(t, health.RegisteredIntegrations)

	require.NoError(t, h.engine.RegisterIntegration(t.Context(), capability("slack")))
	require.NoError(t, h.engine.RegisterWorkflow(t.Context(), definition("wf-health", notificationStep("notify"))))

	health = h.engine.GetSystemHealth(t.Context())
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.RegisteredWorkflows)
	assert.Equal(t, 1, health.RegisteredIntegrations)
	assert.Equal(t, 1, health.AvailableIntegrations)
	require.Contains(t, health.Integrations, "slack")

	// An unavailable integration degrades the overall status.
	unavailable := false
	h.engine.UpdateIntegrationState(t.Context(), "slack", integration.StateUpdate{Available: &unavailable})

	health = h.engine.GetSystemHealth(t.Context())
	assert.Equal(t, "degraded", health.Status)
	assert.Zero(t, health.AvailableIntegrations)
}

func TestGetExecutionNotFound(t *testing.T) {
	h := newEngineHarness(t, testConfig(), nil)

	_, err := h.engine.GetExecution(t.Context(), "exec-missing")
	require.ErrorIs(t, err, ErrExecutionNotFound)

	_, err = h.engine.GetWorkflowAnalytics(t.Context(), "wf-missing")
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestLoadRecoversQueueState(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := memory.NewPersistence()

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	integrations := integration.NewRegistry(logger, eventBus, nil)
	steps := registry.NewRegistry(logger)
	workflows := workflow.NewRegistry(logger, store, eventBus, steps, 100, false)

	eng := New(testConfig(), logger, store, eventBus, integrations, workflows, steps, nil)
	steps.RegisterDefaultSteps(registry.Dependencies{Integrations: integrations, Runner: eng})

	ctx := context.Background()

	require.NoError(t, workflows.RegisterWorkflow(ctx, definition("wf-reboot", notificationStep("notify"))))

	pending := &models.WorkflowExecution{
		ID:         "exec-pending1",
		WorkflowID: "wf-reboot",
		Status:     models.ExecutionStatusPending,
		StepExecutions: map[string]*models.StepExecution{
			"notify": {StepID: "notify", Status: models.StepStatusPending},
		},
		QueuedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveExecution(ctx, pending))

	startedAt := time.Now().UTC()
	interrupted := &models.WorkflowExecution{
		ID:             "exec-running1",
		WorkflowID:     "wf-reboot",
		Status:         models.ExecutionStatusRunning,
		StepExecutions: map[string]*models.StepExecution{},
		QueuedAt:       time.Now().UTC(),
		StartedAt:      &startedAt,
	}
	require.NoError(t, store.SaveExecution(ctx, interrupted))

	require.NoError(t, eng.Load(ctx))
	require.NoError(t, eng.Start(ctx))

	t.Cleanup(func() { eng.Stop(context.Background()) })

	failed, err := store.ExecutionByID(ctx, "exec-running1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, failed.Status)
	assert.Equal(t, "interrupted by engine restart", failed.Error)

	require.Eventually(t, func() bool {
		execution, err := store.ExecutionByID(ctx, "exec-pending1")

		return err == nil && execution.Status == models.ExecutionStatusCompleted
	}, waitFor, tick, "recovered pending execution never ran")
}
