// Package postgres provides the PostgreSQL persistence implementation for
// durable workflow, route, execution and analytics storage.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"
	"github.com/weftlabs/weft/pkg/models"
)

// Persistence implements the persistence layer on PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *WorkflowRepository
	routeRepo     *RouteRepository
	executionRepo *ExecutionRepository
	analyticsRepo *AnalyticsRepository
}

// NewPersistence opens the database, runs migrations and wires the
// repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		workflowRepo:  NewWorkflowRepository(database, logger),
		routeRepo:     NewRouteRepository(database, logger),
		executionRepo: NewExecutionRepository(database, logger),
		analyticsRepo: NewAnalyticsRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return p.workflowRepo.GetAll(ctx)
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error {
	return p.workflowRepo.Save(ctx, workflow)
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return p.workflowRepo.Delete(ctx, id)
}

func (p *Persistence) Routes(ctx context.Context) ([]*models.IntegrationRoute, error) {
	return p.routeRepo.GetAll(ctx)
}

func (p *Persistence) SaveRoute(ctx context.Context, route *models.IntegrationRoute) error {
	return p.routeRepo.Save(ctx, route)
}

func (p *Persistence) Executions(ctx context.Context) ([]*models.WorkflowExecution, error) {
	return p.executionRepo.GetAll(ctx)
}

func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return p.executionRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	return p.executionRepo.Save(ctx, execution)
}

func (p *Persistence) AnalyticsByWorkflowID(ctx context.Context, workflowID string) (*models.WorkflowAnalytics, error) {
	return p.analyticsRepo.GetByWorkflowID(ctx, workflowID)
}

func (p *Persistence) SaveAnalytics(ctx context.Context, analytics *models.WorkflowAnalytics) error {
	return p.analyticsRepo.Save(ctx, analytics)
}
