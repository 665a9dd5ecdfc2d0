package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
)

// AnalyticsRepository handles workflow analytics aggregates.
type AnalyticsRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAnalyticsRepository creates a new analytics repository.
func NewAnalyticsRepository(db *sql.DB, logger *slog.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{db: db, logger: logger}
}

// GetByWorkflowID returns the aggregate for one workflow.
func (r *AnalyticsRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*models.WorkflowAnalytics, error) {
	var raw []byte

	err := r.db.QueryRowContext(ctx,
		"SELECT record FROM workflow_analytics WHERE workflow_id = $1", workflowID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("AnalyticsByWorkflowID", workflowID, persistence.ErrAnalyticsNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query analytics for %s: %w", workflowID, err)
	}

	var analytics models.WorkflowAnalytics

	err = json.Unmarshal(raw, &analytics)
	if err != nil {
		return nil, fmt.Errorf("failed to decode analytics record: %w", err)
	}

	return &analytics, nil
}

// Save inserts or replaces an aggregate.
func (r *AnalyticsRepository) Save(ctx context.Context, analytics *models.WorkflowAnalytics) error {
	raw, err := json.Marshal(analytics)
	if err != nil {
		return fmt.Errorf("failed to encode analytics record: %w", err)
	}

	query := `
		INSERT INTO workflow_analytics (workflow_id, record, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (workflow_id) DO UPDATE SET
			record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query, analytics.WorkflowID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save analytics for %s: %w", analytics.WorkflowID, err)
	}

	return nil
}
