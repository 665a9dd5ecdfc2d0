package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
)

// ExecutionRepository handles workflow execution snapshots.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// GetAll returns all executions ordered by queue time.
func (r *ExecutionRepository) GetAll(ctx context.Context) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT record
		FROM executions
		ORDER BY queued_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		var raw []byte

		err := rows.Scan(&raw)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}

		var execution models.WorkflowExecution

		err = json.Unmarshal(raw, &execution)
		if err != nil {
			return nil, fmt.Errorf("failed to decode execution record: %w", err)
		}

		executions = append(executions, &execution)
	}

	return executions, rows.Err()
}

// GetByID returns one execution.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var raw []byte

	err := r.db.QueryRowContext(ctx, "SELECT record FROM executions WHERE id = $1", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query execution %s: %w", id, err)
	}

	var execution models.WorkflowExecution

	err = json.Unmarshal(raw, &execution)
	if err != nil {
		return nil, fmt.Errorf("failed to decode execution record: %w", err)
	}

	return &execution, nil
}

// Save inserts or replaces an execution snapshot.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	raw, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to encode execution record: %w", err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, record, queued_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			record = EXCLUDED.record
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, string(execution.Status), raw, execution.QueuedAt)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}
