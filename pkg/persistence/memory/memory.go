// Package memory provides the in-memory persistence implementation. It is
// the default store: execution state is hot runtime data and the engine is
// authoritative for it.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
)

// Persistence keeps all records in maps guarded by a single RWMutex.
// Records round-trip through JSON on every save and read, so callers always
// hold private snapshots and observe the same value semantics a
// serializing store gives them.
type Persistence struct {
	mu         sync.RWMutex
	workflows  map[string]*models.WorkflowDefinition
	routes     map[string]*models.IntegrationRoute
	executions map[string]*models.WorkflowExecution
	analytics  map[string]*models.WorkflowAnalytics
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		workflows:  make(map[string]*models.WorkflowDefinition),
		routes:     make(map[string]*models.IntegrationRoute),
		executions: make(map[string]*models.WorkflowExecution),
		analytics:  make(map[string]*models.WorkflowAnalytics),
	}
}

func snapshot[T any](in *T) (*T, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot record: %w", err)
	}

	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to restore record: %w", err)
	}

	return out, nil
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflows := make([]*models.WorkflowDefinition, 0, len(p.workflows))

	for _, workflow := range p.workflows {
		copied, err := snapshot(workflow)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, copied)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error {
	copied, err := snapshot(workflow)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.workflows[workflow.ID] = copied

	return nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflow, ok := p.workflows[id]
	if !ok {
		return nil, persistence.NewStoreError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	return snapshot(workflow)
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.workflows, id)

	return nil
}

func (p *Persistence) Routes(ctx context.Context) ([]*models.IntegrationRoute, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	routes := make([]*models.IntegrationRoute, 0, len(p.routes))

	for _, route := range p.routes {
		copied, err := snapshot(route)
		if err != nil {
			return nil, err
		}

		routes = append(routes, copied)
	}

	sort.Slice(routes, func(i, j int) bool {
		return routes[i].RegisteredAt.Before(routes[j].RegisteredAt)
	})

	return routes, nil
}

func (p *Persistence) SaveRoute(ctx context.Context, route *models.IntegrationRoute) error {
	copied, err := snapshot(route)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.routes[route.ID] = copied

	return nil
}

func (p *Persistence) Executions(ctx context.Context) ([]*models.WorkflowExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	executions := make([]*models.WorkflowExecution, 0, len(p.executions))

	for _, execution := range p.executions {
		copied, err := snapshot(execution)
		if err != nil {
			return nil, err
		}

		executions = append(executions, copied)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].QueuedAt.Before(executions[j].QueuedAt)
	})

	return executions, nil
}

func (p *Persistence) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	copied, err := snapshot(execution)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.executions[execution.ID] = copied

	return nil
}

func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	execution, ok := p.executions[id]
	if !ok {
		return nil, persistence.NewStoreError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	return snapshot(execution)
}

func (p *Persistence) AnalyticsByWorkflowID(ctx context.Context, workflowID string) (*models.WorkflowAnalytics, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	analytics, ok := p.analytics[workflowID]
	if !ok {
		return nil, persistence.NewStoreError("AnalyticsByWorkflowID", workflowID, persistence.ErrAnalyticsNotFound)
	}

	return snapshot(analytics)
}

func (p *Persistence) SaveAnalytics(ctx context.Context, analytics *models.WorkflowAnalytics) error {
	copied, err := snapshot(analytics)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.analytics[analytics.WorkflowID] = copied

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return nil
}

func (p *Persistence) Close(ctx context.Context) error {
	return nil
}
