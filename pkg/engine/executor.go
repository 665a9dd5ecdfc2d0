package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/weftlabs/weft/pkg/condition"
	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/otelhelper"
)

// errHalted signals that an execution stopped advancing because it was
// cancelled or paused. It never reaches the store or the caller.
var errHalted = errors.New("execution halted")

// stepOutcome is the final result of one step after gating and retries.
type stepOutcome struct {
	result  any
	err     error
	skipped bool
}

// runExecution drives one admitted execution from pending to a terminal
// state.
func (e *Engine) runExecution(ctx context.Context, id string) {
	execution, err := e.store.ExecutionByID(ctx, id)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load queued execution",
			"execution_id", id, "error", err)

		return
	}

	// Cancelled or paused while still queued: run nothing.
	if execution.Status != models.ExecutionStatusPending && execution.Status != models.ExecutionStatusRetrying {
		return
	}

	logger := e.logger.With("execution_id", id, "workflow_id", execution.WorkflowID)

	def, err := e.workflows.WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		e.finish(ctx, execution, nil, fmt.Errorf("workflow %s is gone: %w", execution.WorkflowID, err), logger)

		return
	}

	order, err := topoOrder(def.Steps)
	if err != nil {
		e.finish(ctx, execution, def, err, logger)

		return
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusRunning

	if execution.StartedAt == nil {
		execution.StartedAt = &now
	}

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist execution start", "error", err)
	}

	logger.InfoContext(ctx, "Execution started", "steps", len(order))

	e.publish(ctx, id, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent),
		ExecutionID: id,
		WorkflowID:  def.ID,
	})

	runCtx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execution",
		attribute.String(otelhelper.WorkflowIDKey, def.ID),
		attribute.String(otelhelper.ExecutionIDKey, id),
	)
	defer span.End()

	if def.Settings.TimeoutMs > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, time.Duration(def.Settings.TimeoutMs)*time.Millisecond)

		defer cancel()
	}

	runErr := e.runSteps(runCtx, execution, def, order, logger)
	if runErr != nil && !errors.Is(runErr, errHalted) {
		otelhelper.SetError(span, runErr)
	}

	e.finish(ctx, execution, def, runErr, logger)
}

// runSteps walks the steps in dependency order, applying the dependency
// gate and merging each result into the execution state. Completed steps
// from an earlier run of the same execution are not re-run.
func (e *Engine) runSteps(ctx context.Context, execution *models.WorkflowExecution, def *models.WorkflowDefinition, order []*models.WorkflowStep, logger *slog.Logger) error {
	for _, step := range order {
		record := execution.StepExecutions[step.ID]
		if record == nil {
			record = &models.StepExecution{StepID: step.ID, Status: models.StepStatusPending}
			execution.StepExecutions[step.ID] = record
		}

		if record.Status == models.StepStatusCompleted || record.Status == models.StepStatusSkipped {
			continue
		}

		if e.halted(execution.ID) {
			logger.InfoContext(ctx, "Execution halted", "at_step", step.ID)

			return errHalted
		}

		if !depsCompleted(execution, step) {
			markSkipped(record, "unmet dependencies")
			logger.InfoContext(ctx, "Step skipped",
				"step_id", step.ID, "reason", "unmet dependencies")

			continue
		}

		outcome := e.executeStep(ctx, step, record, executionContext(execution), logger)
		if outcome.skipped {
			e.persistProgress(ctx, execution, logger)

			continue
		}

		if outcome.err != nil {
			handled, delegErr := e.delegate(ctx, execution, def, step, logger)
			if delegErr != nil {
				return fmt.Errorf("on-error step %s failed: %w", step.OnError, delegErr)
			}

			if !handled {
				return fmt.Errorf("step %s failed: %w", step.ID, outcome.err)
			}

			continue
		}

		mergeResult(execution, step, outcome.result)
		e.persistProgress(ctx, execution, logger)
	}

	return nil
}

// executeStep runs one step to a final outcome: condition gate, handler
// construction, then the retry loop with per-attempt events. A nil record
// means the caller keeps no per-step bookkeeping, which is how parallel
// sub-steps run.
func (e *Engine) executeStep(ctx context.Context, step *models.WorkflowStep, record *models.StepExecution, execCtx models.ExecutionContext, logger *slog.Logger) stepOutcome {
	if step.Condition != nil && !condition.Evaluate(step.Condition, execCtx.Variables) {
		if record != nil {
			markSkipped(record, "condition not met")
		}

		logger.InfoContext(ctx, "Step skipped",
			"step_id", step.ID, "reason", "condition not met")

		return stepOutcome{skipped: true}
	}

	handler, err := e.steps.CreateStep(step)
	if err != nil {
		// Configuration errors are deterministic; retrying cannot help.
		if record != nil {
			failRecord(record, err)
		}

		return stepOutcome{err: err}
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.step",
		attribute.String(otelhelper.ExecutionIDKey, execCtx.ID),
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepTypeKey, string(step.Type)),
	)
	defer span.End()

	policy := retryPolicy(step, e.config)
	timeout := stepTimeout(step, e.config)

	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if wait := policy.Backoff(attempt); wait > 0 {
			timer := time.NewTimer(wait)

			select {
			case <-ctx.Done():
				timer.Stop()
				lastErr = ctx.Err()

				if record != nil {
					failRecord(record, lastErr)
				}

				return stepOutcome{err: lastErr}
			case <-timer.C:
			}
		}

		started := time.Now().UTC()

		if record != nil {
			record.Status = models.StepStatusRunning
			record.Attempts = attempt

			if record.StartedAt == nil {
				record.StartedAt = &started
			}
		}

		e.publish(ctx, execCtx.ID, events.StepStarted{
			BaseEvent:   events.NewBaseEvent(events.StepStartedEvent),
			ExecutionID: execCtx.ID,
			WorkflowID:  execCtx.WorkflowID,
			StepID:      step.ID,
			StepType:    string(step.Type),
			Attempt:     attempt,
		})

		attemptCtx := ctx

		var cancel context.CancelFunc
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		result, execErr := handler.Execute(attemptCtx, execCtx, logger)

		if cancel != nil {
			cancel()
		}

		durationMs := time.Since(started).Milliseconds()

		if e.collector != nil {
			e.collector.StepDuration.WithLabelValues(string(step.Type)).Observe(time.Since(started).Seconds())
		}

		if execErr != nil {
			lastErr = execErr
			willRetry := attempt < policy.MaxAttempts && ctx.Err() == nil

			logger.WarnContext(ctx, "Step attempt failed",
				"step_id", step.ID,
				"attempt", attempt,
				"will_retry", willRetry,
				"error", execErr)

			if e.collector != nil {
				e.collector.StepsTotal.WithLabelValues(string(step.Type), "failed").Inc()
			}

			e.publish(ctx, execCtx.ID, events.StepFailed{
				BaseEvent:   events.NewBaseEvent(events.StepFailedEvent),
				ExecutionID: execCtx.ID,
				WorkflowID:  execCtx.WorkflowID,
				StepID:      step.ID,
				Error:       execErr.Error(),
				Attempt:     attempt,
				WillRetry:   willRetry,
			})

			if record != nil {
				record.Status = models.StepStatusRetrying
			}

			if !willRetry {
				break
			}

			continue
		}

		if record != nil {
			finished := time.Now().UTC()
			record.Status = models.StepStatusCompleted
			record.Result = result
			record.Error = ""
			record.FinishedAt = &finished
			record.DurationMs = finished.Sub(*record.StartedAt).Milliseconds()
			durationMs = record.DurationMs
		}

		logger.InfoContext(ctx, "Step completed",
			"step_id", step.ID, "attempts", attempt, "duration_ms", durationMs)

		if e.collector != nil {
			e.collector.StepsTotal.WithLabelValues(string(step.Type), "completed").Inc()
		}

		e.publish(ctx, execCtx.ID, events.StepCompleted{
			BaseEvent:   events.NewBaseEvent(events.StepCompletedEvent),
			ExecutionID: execCtx.ID,
			WorkflowID:  execCtx.WorkflowID,
			StepID:      step.ID,
			DurationMs:  durationMs,
		})

		e.publishStepEvents(ctx, step, execCtx, result, durationMs)

		return stepOutcome{result: result}
	}

	otelhelper.SetError(span, lastErr)

	if record != nil {
		failRecord(record, lastErr)
	}

	return stepOutcome{err: lastErr}
}

// delegate runs the on_error recovery step for a failed step. The failed
// record stays failed; the recovery step runs immediately with its own
// record and is not run again when the walk reaches it later. Recovery
// steps get no recovery of their own: their failure fails the execution.
func (e *Engine) delegate(ctx context.Context, execution *models.WorkflowExecution, def *models.WorkflowDefinition, failed *models.WorkflowStep, logger *slog.Logger) (bool, error) {
	if failed.OnError == "" || failed.OnError == failed.ID {
		return false, nil
	}

	target := def.StepByID(failed.OnError)
	if target == nil {
		logger.WarnContext(ctx, "On-error step not found",
			"step_id", failed.ID, "on_error", failed.OnError)

		return false, nil
	}

	record := execution.StepExecutions[target.ID]
	if record == nil {
		record = &models.StepExecution{StepID: target.ID, Status: models.StepStatusPending}
		execution.StepExecutions[target.ID] = record
	}

	// Already ran earlier in the walk; the failure counts as handled.
	if record.Status == models.StepStatusCompleted {
		e.persistProgress(ctx, execution, logger)

		return true, nil
	}

	if record.Status != models.StepStatusPending {
		return false, nil
	}

	logger.InfoContext(ctx, "Delegating to on-error step",
		"step_id", failed.ID, "on_error", target.ID)

	outcome := e.executeStep(ctx, target, record, executionContext(execution), logger)
	if outcome.skipped {
		e.persistProgress(ctx, execution, logger)

		return false, nil
	}

	if outcome.err != nil {
		return false, outcome.err
	}

	mergeResult(execution, target, outcome.result)
	e.persistProgress(ctx, execution, logger)

	return true, nil
}

// finish applies the terminal transition and its follow-up: analytics,
// lifecycle events and the auto-retry re-queue.
func (e *Engine) finish(ctx context.Context, execution *models.WorkflowExecution, def *models.WorkflowDefinition, runErr error, logger *slog.Logger) {
	if errors.Is(runErr, errHalted) || e.cancelled(execution.ID) {
		return
	}

	now := time.Now().UTC()
	execution.FinishedAt = &now

	if runErr == nil {
		execution.Status = models.ExecutionStatusCompleted
		execution.Error = ""
	} else {
		execution.Status = models.ExecutionStatusFailed
		execution.Error = runErr.Error()
	}

	durationMs := execution.Duration().Milliseconds()

	retrying := runErr != nil && e.config.AutoRetryFailures && def != nil &&
		execution.RetryCount < retryBudget(def, e.config)

	// Every terminated run lands in the analytics, including runs about
	// to be retried.
	e.updateAnalytics(ctx, execution, def)

	if e.collector != nil {
		e.collector.ExecutionsTotal.WithLabelValues(string(execution.Status)).Inc()
		e.collector.ExecutionDuration.Observe(float64(durationMs) / 1000)
	}

	if retrying {
		execution.RetryCount++
		execution.Status = models.ExecutionStatusRetrying
		execution.FinishedAt = nil

		// Failed and skipped steps run again; completed results stay.
		for id, record := range execution.StepExecutions {
			if record.Status == models.StepStatusFailed || record.Status == models.StepStatusSkipped ||
				record.Status == models.StepStatusRetrying || record.Status == models.StepStatusRunning {
				execution.StepExecutions[id] = &models.StepExecution{StepID: id, Status: models.StepStatusPending}
			}
		}

		if err := e.store.SaveExecution(ctx, execution); err != nil {
			logger.ErrorContext(ctx, "Failed to persist retry state", "error", err)
		}

		logger.InfoContext(ctx, "Execution retrying",
			"retry_count", execution.RetryCount, "error", runErr)

		e.publish(ctx, execution.ID, events.ExecutionRetrying{
			BaseEvent:   events.NewBaseEvent(events.ExecutionRetryingEvent),
			ExecutionID: execution.ID,
			WorkflowID:  execution.WorkflowID,
			RetryCount:  execution.RetryCount,
		})

		e.enqueue(execution.ID)

		return
	}

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist terminal state", "error", err)
	}

	if runErr == nil {
		logger.InfoContext(ctx, "Execution completed",
			"duration_ms", durationMs, "steps_executed", stepsExecuted(execution))

		e.publish(ctx, execution.ID, events.ExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent),
			ExecutionID:   execution.ID,
			WorkflowID:    execution.WorkflowID,
			DurationMs:    durationMs,
			StepsExecuted: stepsExecuted(execution),
		})

		return
	}

	logger.ErrorContext(ctx, "Execution failed",
		"duration_ms", durationMs, "error", runErr)

	e.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Error:       runErr.Error(),
		DurationMs:  durationMs,
	})
}

// publishStepEvents emits the handler-specific events after a successful
// step.
func (e *Engine) publishStepEvents(ctx context.Context, step *models.WorkflowStep, execCtx models.ExecutionContext, result any, durationMs int64) {
	switch step.Type {
	case models.StepTypeIntegrationAction:
		e.publish(ctx, execCtx.ID, events.IntegrationActionCompleted{
			BaseEvent:     events.NewBaseEvent(events.IntegrationActionCompletedEvent),
			ExecutionID:   execCtx.ID,
			IntegrationID: step.IntegrationID,
			Action:        step.Action,
			DurationMs:    durationMs,
			Success:       true,
		})
	case models.StepTypeAITask:
		event := events.AITaskCompleted{
			BaseEvent:   events.NewBaseEvent(events.AITaskCompletedEvent),
			ExecutionID: execCtx.ID,
			StepID:      step.ID,
		}

		if step.AI != nil {
			taskType := step.AI.Type
			if taskType == "" {
				taskType = models.AITaskCustom
			}

			event.TaskType = string(taskType)
			event.Model = step.AI.Model
		}

		e.publish(ctx, execCtx.ID, event)
	case models.StepTypeAdvancedBranch:
		event := events.BranchEvaluated{
			BaseEvent:   events.NewBaseEvent(events.BranchEvaluatedEvent),
			ExecutionID: execCtx.ID,
			StepID:      step.ID,
		}

		if resultMap, ok := result.(map[string]any); ok {
			if branch, ok := resultMap["_selectedBranch"].(string); ok {
				event.SelectedBranch = branch
			}

			event.Decision = resultMap["_branchDecision"]
		}

		e.publish(ctx, execCtx.ID, event)
	default:
	}
}

// halted reports whether the execution was cancelled or paused since the
// last step boundary.
func (e *Engine) halted(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.control[id]

	return state != nil && (state.cancelled || state.paused)
}

func (e *Engine) cancelled(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.control[id]

	return state != nil && state.cancelled
}

// persistProgress saves the execution mid-run. A concurrent cancel wins:
// its terminal record stays untouched. A concurrent pause keeps the paused
// status while picking up the newest step results.
func (e *Engine) persistProgress(ctx context.Context, execution *models.WorkflowExecution, logger *slog.Logger) {
	e.mu.Lock()
	state := e.control[execution.ID]
	cancelled := state != nil && state.cancelled
	paused := state != nil && state.paused
	e.mu.Unlock()

	if cancelled {
		return
	}

	if paused {
		execution.Status = models.ExecutionStatusPaused
	}

	if err := e.store.SaveExecution(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist execution progress", "error", err)
	}
}

// executionContext builds the read view handlers receive. StepResults
// carries the raw result of every completed step keyed by step id, so a
// resumed execution exposes results from before the pause too.
func executionContext(execution *models.WorkflowExecution) models.ExecutionContext {
	stepResults := make(map[string]any)

	for id, record := range execution.StepExecutions {
		if record.Status == models.StepStatusCompleted && record.Result != nil {
			stepResults[id] = record.Result
		}
	}

	return models.ExecutionContext{
		ID:          execution.ID,
		WorkflowID:  execution.WorkflowID,
		TriggerData: execution.TriggerData,
		Variables:   execution.Variables,
		StepResults: stepResults,
		Metadata:    execution.Metadata,
	}
}

// mergeResult folds a step result into the variable bag: map results merge
// key by key with newer values replacing older ones, anything else lands
// under the step id.
func mergeResult(execution *models.WorkflowExecution, step *models.WorkflowStep, result any) {
	if result == nil {
		return
	}

	if execution.Variables == nil {
		execution.Variables = make(map[string]any)
	}

	if resultMap, ok := result.(map[string]any); ok {
		for key, value := range resultMap {
			execution.Variables[key] = value
		}

		return
	}

	execution.Variables[step.ID] = result
}

// depsCompleted reports whether every dependency of the step completed.
// Failed or skipped dependencies block the step, which then skips too.
func depsCompleted(execution *models.WorkflowExecution, step *models.WorkflowStep) bool {
	for _, dep := range step.DependsOn {
		record := execution.StepExecutions[dep]
		if record == nil || record.Status != models.StepStatusCompleted {
			return false
		}
	}

	return true
}

// topoOrder returns the steps in dependency order, always picking the
// earliest-declared step whose dependencies are already ordered.
// Registration validates the DAG; the cycle check here defends against
// definitions mutated behind the registry's back.
func topoOrder(steps []*models.WorkflowStep) ([]*models.WorkflowStep, error) {
	known := make(map[string]bool, len(steps))
	for _, step := range steps {
		known[step.ID] = true
	}

	remaining := make(map[string]int, len(steps))

	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if known[dep] {
				remaining[step.ID]++
			}
		}
	}

	order := make([]*models.WorkflowStep, 0, len(steps))
	ordered := make(map[string]bool, len(steps))

	for len(order) < len(steps) {
		var next *models.WorkflowStep

		for _, step := range steps {
			if !ordered[step.ID] && remaining[step.ID] == 0 {
				next = step

				break
			}
		}

		if next == nil {
			return nil, errors.New("workflow steps contain a dependency cycle")
		}

		ordered[next.ID] = true
		order = append(order, next)

		for _, step := range steps {
			if ordered[step.ID] {
				continue
			}

			for _, dep := range step.DependsOn {
				if dep == next.ID {
					remaining[step.ID]--
				}
			}
		}
	}

	return order, nil
}

// retryPolicy returns the effective policy for a step. Steps without an
// explicit policy retry with the engine defaults.
func retryPolicy(step *models.WorkflowStep, config Config) models.RetryPolicy {
	if step.Retry != nil {
		policy := *step.Retry
		if policy.MaxAttempts <= 0 {
			policy.MaxAttempts = 1
		}

		return policy
	}

	return models.RetryPolicy{
		MaxAttempts:       config.DefaultRetryAttempts,
		DelayMs:           DefaultRetryDelayMs,
		BackoffMultiplier: DefaultRetryBackoffMultiplier,
	}
}

func retryBudget(def *models.WorkflowDefinition, config Config) int {
	if def.Settings.RetryAttempts > 0 {
		return def.Settings.RetryAttempts
	}

	return config.DefaultRetryAttempts
}

func stepTimeout(step *models.WorkflowStep, config Config) time.Duration {
	timeoutMs := step.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = config.DefaultTimeoutMs
	}

	return time.Duration(timeoutMs) * time.Millisecond
}

func stepsExecuted(execution *models.WorkflowExecution) int {
	count := 0

	for _, record := range execution.StepExecutions {
		if record.Attempts > 0 {
			count++
		}
	}

	return count
}

func markSkipped(record *models.StepExecution, reason string) {
	now := time.Now().UTC()
	record.Status = models.StepStatusSkipped
	record.Error = reason
	record.FinishedAt = &now
}

func failRecord(record *models.StepExecution, err error) {
	now := time.Now().UTC()
	record.Status = models.StepStatusFailed
	record.Error = err.Error()
	record.FinishedAt = &now

	if record.StartedAt != nil {
		record.DurationMs = now.Sub(*record.StartedAt).Milliseconds()
	}
}
