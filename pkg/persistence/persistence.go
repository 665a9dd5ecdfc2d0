// Package persistence provides the storage abstraction for workflow
// definitions, routes, executions and analytics.
package persistence

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error)
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	DeleteWorkflow(ctx context.Context, id string) error

	Routes(ctx context.Context) ([]*models.IntegrationRoute, error)
	SaveRoute(ctx context.Context, route *models.IntegrationRoute) error

	Executions(ctx context.Context) ([]*models.WorkflowExecution, error)
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)

	AnalyticsByWorkflowID(ctx context.Context, workflowID string) (*models.WorkflowAnalytics, error)
	SaveAnalytics(ctx context.Context, analytics *models.WorkflowAnalytics) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
