// Package engine coordinates workflow execution end to end: admission
// control with a global concurrency cap, DAG-ordered step execution with
// retries and error-handler delegation, per-workflow analytics and the
// system health surface. It composes the integration registry, the
// workflow registry and the step factory catalog behind one facade.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/weftlabs/weft/pkg/eventbus"
	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/integration"
	"github.com/weftlabs/weft/pkg/metrics"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
	"github.com/weftlabs/weft/pkg/registry"
	"github.com/weftlabs/weft/pkg/workflow"
)

// controlState carries the cooperative cancellation and pause flags for
// one non-terminal execution. Processors check it between steps.
type controlState struct {
	cancelled bool
	paused    bool
}

// Engine is the workflow execution engine facade.
type Engine struct {
	config       Config
	logger       *slog.Logger
	store        persistence.Persistence
	eventBus     eventbus.EventBus
	integrations *integration.Registry
	workflows    *workflow.Registry
	steps        *registry.Registry
	monitor      *integration.Monitor
	collector    *metrics.Collector
	tracer       trace.Tracer

	mu      sync.Mutex
	queue   []string
	active  map[string]struct{}
	control map[string]*controlState
	wakeCh  chan struct{}

	runCtx    context.Context
	cancelRun context.CancelFunc
	done      chan struct{}
	started   bool
}

// New assembles an engine. The collector may be nil; it is also ignored
// when metrics are disabled in the config.
func New(
	config Config,
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	integrations *integration.Registry,
	workflows *workflow.Registry,
	steps *registry.Registry,
	collector *metrics.Collector,
) *Engine {
	config = config.withDefaults()

	if !config.EnableMetrics {
		collector = nil
	}

	engine := &Engine{
		config:       config,
		logger:       logger.With("module", "engine"),
		store:        store,
		eventBus:     eventBus,
		integrations: integrations,
		workflows:    workflows,
		steps:        steps,
		collector:    collector,
		tracer:       otel.Tracer("weft-engine"),
		active:       make(map[string]struct{}),
		control:      make(map[string]*controlState),
		wakeCh:       make(chan struct{}, 1),
		done:         make(chan struct{}),
	}

	engine.monitor = integration.NewMonitor(
		integrations,
		time.Duration(config.HealthCheckIntervalMs)*time.Millisecond,
		config.IntegrationHealthThreshold,
		logger,
		eventBus,
	)

	return engine
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Start launches the dispatcher and the integration health monitor.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()

		return nil
	}

	e.started = true
	e.runCtx, e.cancelRun = context.WithCancel(ctx)
	e.mu.Unlock()

	e.monitor.Start(e.runCtx)

	go e.dispatch()

	e.logger.InfoContext(ctx, "Engine started",
		"max_concurrent_executions", e.config.MaxConcurrentExecutions)

	return nil
}

// Stop shuts the dispatcher and monitor down. In-flight executions get
// their contexts cancelled; their final persisted state reflects
// wherever they stopped.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()

		return
	}

	e.started = false
	cancel := e.cancelRun
	e.mu.Unlock()

	e.monitor.Stop()
	cancel()

	select {
	case <-e.done:
	case <-ctx.Done():
		e.logger.WarnContext(ctx, "Engine stop timed out waiting for dispatcher")
	}

	e.logger.InfoContext(ctx, "Engine stopped")
}

// Load recovers queue state from the store after a restart: pending and
// retrying executions are re-enqueued, executions caught mid-run are
// marked failed.
func (e *Engine) Load(ctx context.Context) error {
	executions, err := e.store.Executions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load executions: %w", err)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].QueuedAt.Before(executions[j].QueuedAt)
	})

	for _, execution := range executions {
		switch execution.Status {
		case models.ExecutionStatusPending, models.ExecutionStatusRetrying:
			e.enqueue(execution.ID)
		case models.ExecutionStatusRunning:
			now := time.Now().UTC()
			execution.Status = models.ExecutionStatusFailed
			execution.Error = "interrupted by engine restart"
			execution.FinishedAt = &now

			if err := e.store.SaveExecution(ctx, execution); err != nil {
				e.logger.ErrorContext(ctx, "Failed to mark interrupted execution", "execution_id", execution.ID, "error", err)
			}
		default:
		}
	}

	return nil
}

// RegisterIntegration adds or replaces an integration capability.
func (e *Engine) RegisterIntegration(ctx context.Context, capability *models.IntegrationCapability) error {
	return e.integrations.Register(ctx, capability)
}

// UnregisterIntegration removes an integration. Unknown ids are a no-op.
func (e *Engine) UnregisterIntegration(ctx context.Context, id string) {
	e.integrations.Unregister(ctx, id)
}

// UpdateIntegrationState applies a partial state update to an integration.
func (e *Engine) UpdateIntegrationState(ctx context.Context, id string, update integration.StateUpdate) {
	e.integrations.UpdateState(ctx, id, update)
}

// RegisterWorkflow validates and stores a workflow definition.
func (e *Engine) RegisterWorkflow(ctx context.Context, def *models.WorkflowDefinition) error {
	return e.workflows.RegisterWorkflow(ctx, def)
}

// RegisterRoute validates and stores an integration route.
func (e *Engine) RegisterRoute(ctx context.Context, route *models.IntegrationRoute) error {
	return e.workflows.RegisterRoute(ctx, route)
}

// GetRegisteredRoutes lists all integration routes.
func (e *Engine) GetRegisteredRoutes(ctx context.Context) ([]*models.IntegrationRoute, error) {
	return e.workflows.Routes(ctx)
}

// FindOptimalRoute picks the best enabled, condition-matching route for an
// integration pair given the data being moved.
func (e *Engine) FindOptimalRoute(ctx context.Context, from, to string, data map[string]any) (*models.IntegrationRoute, bool) {
	return e.workflows.FindOptimalRoute(ctx, from, to, data)
}

// ExecuteWorkflow admits one workflow run: it fails fast when the
// workflow is missing, disabled or depends on an unavailable integration,
// otherwise it persists a pending execution, enqueues it and returns the
// execution id without waiting for completion.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID, triggeredBy string, triggerData map[string]any) (string, error) {
	def, err := e.workflows.WorkflowByID(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return "", fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowNotFound)
		}

		return "", err
	}

	if !def.Enabled {
		return "", fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowDisabled)
	}

	for _, integrationID := range def.IntegrationIDs() {
		if !e.integrations.Available(integrationID) {
			return "", fmt.Errorf("integration %s: %w", integrationID, ErrIntegrationUnavailable)
		}
	}

	execution, err := newExecution(def, triggeredBy, triggerData)
	if err != nil {
		return "", err
	}

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		return "", fmt.Errorf("failed to persist execution: %w", err)
	}

	e.enqueue(execution.ID)

	e.logger.InfoContext(ctx, "Execution queued",
		"execution_id", execution.ID,
		"workflow_id", workflowID,
		"triggered_by", triggeredBy)

	event := events.ExecutionQueued{
		BaseEvent:   events.NewBaseEvent(events.ExecutionQueuedEvent),
		ExecutionID: execution.ID,
		WorkflowID:  workflowID,
		TriggerType: triggeredBy,
	}
	e.publish(ctx, execution.ID, event)

	return execution.ID, nil
}

// CancelExecution marks an execution cancelled. A queued execution will
// be discarded at admission; a running one stops advancing at the next
// step boundary. In-flight step handlers are never aborted.
func (e *Engine) CancelExecution(ctx context.Context, id string) error {
	execution, err := e.execution(ctx, id)
	if err != nil {
		return err
	}

	if execution.Terminal() {
		return fmt.Errorf("execution %s: %w", id, ErrExecutionFinished)
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCancelled
	execution.FinishedAt = &now

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist cancellation: %w", err)
	}

	e.mu.Lock()
	e.controlFor(id).cancelled = true
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Execution cancelled", "execution_id", id)

	event := events.ExecutionCancelled{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent),
		ExecutionID: id,
		WorkflowID:  execution.WorkflowID,
	}
	e.publish(ctx, id, event)

	return nil
}

// PauseExecution parks a pending or running execution at its next step
// boundary. Completed step outputs survive a later resume.
func (e *Engine) PauseExecution(ctx context.Context, id string) error {
	execution, err := e.execution(ctx, id)
	if err != nil {
		return err
	}

	if execution.Terminal() {
		return fmt.Errorf("execution %s: %w", id, ErrExecutionFinished)
	}

	execution.Status = models.ExecutionStatusPaused

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist pause: %w", err)
	}

	e.mu.Lock()
	e.controlFor(id).paused = true
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Execution paused", "execution_id", id)

	event := events.ExecutionPaused{
		BaseEvent:   events.NewBaseEvent(events.ExecutionPausedEvent),
		ExecutionID: id,
		WorkflowID:  execution.WorkflowID,
	}
	e.publish(ctx, id, event)

	return nil
}

// ResumeExecution re-queues a paused execution. Steps that completed
// before the pause keep their results and are not re-run.
func (e *Engine) ResumeExecution(ctx context.Context, id string) error {
	execution, err := e.execution(ctx, id)
	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionStatusPaused {
		return fmt.Errorf("execution %s: %w", id, ErrExecutionNotPaused)
	}

	execution.Status = models.ExecutionStatusPending

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist resume: %w", err)
	}

	e.mu.Lock()
	e.controlFor(id).paused = false
	e.mu.Unlock()

	e.enqueue(id)

	e.logger.InfoContext(ctx, "Execution resumed", "execution_id", id)

	event := events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent),
		ExecutionID: id,
		WorkflowID:  execution.WorkflowID,
	}
	e.publish(ctx, id, event)

	return nil
}

// GetExecution returns one execution by id.
func (e *Engine) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return e.execution(ctx, id)
}

// GetWorkflowAnalytics returns the rolling aggregate for a workflow.
func (e *Engine) GetWorkflowAnalytics(ctx context.Context, workflowID string) (*models.WorkflowAnalytics, error) {
	analytics, err := e.store.AnalyticsByWorkflowID(ctx, workflowID)
	if err != nil {
		if persistence.IsAnalyticsNotFound(err) {
			return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowNotFound)
		}

		return nil, err
	}

	return analytics, nil
}

// GetIntegrationHealth returns the health snapshot for one integration.
func (e *Engine) GetIntegrationHealth(id string) (models.IntegrationHealth, error) {
	return e.integrations.Health(id)
}

// GetWorkflow returns one workflow definition by id.
func (e *Engine) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	def, err := e.workflows.WorkflowByID(ctx, id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, fmt.Errorf("workflow %s: %w", id, ErrWorkflowNotFound)
		}

		return nil, err
	}

	return def, nil
}

// GetRegisteredWorkflows lists all workflow definitions.
func (e *Engine) GetRegisteredWorkflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return e.workflows.Workflows(ctx)
}

// GetRegisteredIntegrations lists all integration capabilities.
func (e *Engine) GetRegisteredIntegrations() []models.IntegrationCapability {
	return e.integrations.Capabilities()
}

// GetActiveExecutions returns the executions currently holding an
// admission slot, ordered by id.
func (e *Engine) GetActiveExecutions(ctx context.Context) ([]*models.WorkflowExecution, error) {
	e.mu.Lock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	sort.Strings(ids)

	executions := make([]*models.WorkflowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := e.store.ExecutionByID(ctx, id)
		if err != nil {
			continue
		}

		executions = append(executions, execution)
	}

	return executions, nil
}

// SystemHealth is the aggregate health snapshot served by the API.
type SystemHealth struct {
	Status                 string                              `json:"status"`
	ActiveExecutions       int                                 `json:"active_executions"`
	QueuedExecutions       int                                 `json:"queued_executions"`
	RegisteredWorkflows    int                                 `json:"registered_workflows"`
	RegisteredIntegrations int                                 `json:"registered_integrations"`
	AvailableIntegrations  int                                 `json:"available_integrations"`
	StoreHealthy           bool                                `json:"store_healthy"`
	Integrations           map[string]models.IntegrationHealth `json:"integrations"`
	CheckedAt              time.Time                           `json:"checked_at"`
}

// GetSystemHealth reports overall engine health. Status degrades when the
// store is unreachable or any integration is unavailable.
func (e *Engine) GetSystemHealth(ctx context.Context) SystemHealth {
	e.mu.Lock()
	activeCount := len(e.active)
	queuedCount := len(e.queue)
	e.mu.Unlock()

	health := SystemHealth{
		Status:           "healthy",
		ActiveExecutions: activeCount,
		QueuedExecutions: queuedCount,
		StoreHealthy:     true,
		Integrations:     e.integrations.HealthAll(),
		CheckedAt:        time.Now().UTC(),
	}

	if workflows, err := e.workflows.Workflows(ctx); err == nil {
		health.RegisteredWorkflows = len(workflows)
	}

	health.RegisteredIntegrations = e.integrations.Count()

	for _, snapshot := range health.Integrations {
		if snapshot.Available {
			health.AvailableIntegrations++
		}
	}

	if err := e.store.HealthCheck(ctx); err != nil {
		health.StoreHealthy = false
		health.Status = "degraded"
	}

	if health.AvailableIntegrations < health.RegisteredIntegrations {
		health.Status = "degraded"
	}

	return health
}

// RunStep executes a single step through the full per-step machinery
// (condition gate, retries, timeout). It implements protocol.StepRunner
// for composite handlers; results are returned, not merged.
func (e *Engine) RunStep(ctx context.Context, step *models.WorkflowStep, execCtx models.ExecutionContext) (any, error) {
	logger := e.logger.With(
		"execution_id", execCtx.ID,
		"workflow_id", execCtx.WorkflowID,
	)

	outcome := e.executeStep(ctx, step, nil, execCtx, logger)

	return outcome.result, outcome.err
}

func (e *Engine) execution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	execution, err := e.store.ExecutionByID(ctx, id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return nil, fmt.Errorf("execution %s: %w", id, ErrExecutionNotFound)
		}

		return nil, err
	}

	return execution, nil
}

// controlFor returns the control flags for an execution, creating them on
// first use. Callers hold e.mu.
func (e *Engine) controlFor(id string) *controlState {
	state, ok := e.control[id]
	if !ok {
		state = &controlState{}
		e.control[id] = state
	}

	return state
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"error", err)
	}
}

// newExecution builds a pending execution with the variable bag seeded
// from the workflow defaults overlaid with the trigger data, and one
// pending step record per top-level step.
func newExecution(def *models.WorkflowDefinition, triggeredBy string, triggerData map[string]any) (*models.WorkflowExecution, error) {
	variables := make(map[string]any)

	if len(def.Variables) > 0 {
		if err := mergo.Merge(&variables, def.Variables, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to seed workflow variables: %w", err)
		}
	}

	if len(triggerData) > 0 {
		if err := mergo.Merge(&variables, triggerData, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to seed trigger data: %w", err)
		}
	}

	stepExecutions := make(map[string]*models.StepExecution, len(def.Steps))
	for _, step := range def.Steps {
		stepExecutions[step.ID] = &models.StepExecution{
			StepID: step.ID,
			Status: models.StepStatusPending,
		}
	}

	return &models.WorkflowExecution{
		ID:             generateExecutionID(),
		WorkflowID:     def.ID,
		Status:         models.ExecutionStatusPending,
		TriggerData:    triggerData,
		Variables:      variables,
		StepExecutions: stepExecutions,
		QueuedAt:       time.Now().UTC(),
		Metadata: map[string]any{
			"triggered_by": triggeredBy,
		},
	}, nil
}

func generateExecutionID() string {
	return fmt.Sprintf("exec-%s", uuid.New().String()[:8])
}
