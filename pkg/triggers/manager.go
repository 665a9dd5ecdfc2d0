// Package triggers binds the trigger declarations of registered workflows
// to running trigger instances that start executions through the engine.
package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/registry"
)

// Executor is the slice of the engine the manager drives.
type Executor interface {
	ExecuteWorkflow(ctx context.Context, workflowID, triggeredBy string, triggerData map[string]any) (string, error)
	GetRegisteredWorkflows(ctx context.Context) ([]*models.WorkflowDefinition, error)
}

// Manager keeps one running trigger instance per trigger declaration of
// every enabled workflow. Sync reconciles the running set against the
// registry; callers re-run it when workflows change.
type Manager struct {
	executor Executor
	registry *registry.Registry
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]protocol.Trigger
	runCtx  context.Context
	cancel  context.CancelFunc
}

func NewManager(executor Executor, registry *registry.Registry, logger *slog.Logger) *Manager {
	return &Manager{
		executor: executor,
		registry: registry,
		logger:   logger.With("module", "trigger_manager"),
		running:  make(map[string]protocol.Trigger),
	}
}

// Start performs the initial reconciliation. Triggers started here run
// until Stop or until the context is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.ensureRunCtx(ctx)

	return m.Sync(ctx)
}

// ensureRunCtx pins the context trigger instances live on. Sync may run
// from short-lived contexts (a bus handler, a request); trigger lifetimes
// must not end with them.
func (m *Manager) ensureRunCtx(ctx context.Context) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runCtx == nil {
		m.runCtx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	}

	return m.runCtx
}

// Sync starts triggers for declarations that have none running and stops
// triggers whose workflow disappeared or was disabled. Manual and webhook
// declarations need no instance: manual runs are API calls and webhook
// activations arrive through the web layer.
func (m *Manager) Sync(ctx context.Context) error {
	runCtx := m.ensureRunCtx(ctx)

	defs, err := m.executor.GetRegisteredWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	seen := make(map[string]bool)

	for _, def := range defs {
		if !def.Enabled {
			continue
		}

		for i, decl := range def.Triggers {
			if decl.Type != models.TriggerTypeSchedule && decl.Type != models.TriggerTypeQueue {
				continue
			}

			key := fmt.Sprintf("%s/%d", def.ID, i)
			seen[key] = true

			m.mu.Lock()
			_, exists := m.running[key]
			m.mu.Unlock()

			if exists {
				continue
			}

			m.startTrigger(runCtx, key, def.ID, decl)
		}
	}

	m.stopStale(ctx, seen)

	return nil
}

func (m *Manager) startTrigger(runCtx context.Context, key, workflowID string, decl *models.WorkflowTrigger) {
	logger := m.logger.With(
		"workflow_id", workflowID,
		"trigger_type", string(decl.Type),
	)

	config := make(map[string]any, len(decl.Configuration))
	for k, v := range decl.Configuration {
		config[k] = v
	}

	trigger, err := m.registry.CreateTrigger(string(decl.Type), config, m.logger)
	if err != nil {
		logger.ErrorContext(runCtx, "Failed to create trigger", "error", err)

		return
	}

	if err := trigger.Start(runCtx, m.callback(workflowID, string(decl.Type))); err != nil {
		logger.ErrorContext(runCtx, "Failed to start trigger", "error", err)

		return
	}

	m.mu.Lock()
	m.running[key] = trigger
	m.mu.Unlock()

	logger.InfoContext(runCtx, "Trigger started")
}

func (m *Manager) callback(workflowID, triggerType string) protocol.TriggerCallback {
	return func(ctx context.Context, data map[string]any) error {
		id, err := m.executor.ExecuteWorkflow(ctx, workflowID, triggerType, data)
		if err != nil {
			m.logger.WarnContext(ctx, "Trigger fired but execution was refused",
				"workflow_id", workflowID,
				"trigger_type", triggerType,
				"error", err)

			return err
		}

		m.logger.InfoContext(ctx, "Trigger started execution",
			"workflow_id", workflowID,
			"execution_id", id)

		return nil
	}
}

func (m *Manager) stopStale(ctx context.Context, seen map[string]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, trigger := range m.running {
		if seen[key] {
			continue
		}

		if err := trigger.Stop(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Error stopping trigger", "key", key, "error", err)
		}

		delete(m.running, key)
		m.logger.InfoContext(ctx, "Trigger stopped", "key", key)
	}
}

// Running returns the number of live trigger instances.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.running)
}

// Stop halts every running trigger.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.runCtx = nil
	triggers := m.running
	m.running = make(map[string]protocol.Trigger)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	for key, trigger := range triggers {
		if err := trigger.Stop(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Error stopping trigger", "key", key, "error", err)
		}
	}

	m.logger.InfoContext(ctx, "All triggers stopped")
}
