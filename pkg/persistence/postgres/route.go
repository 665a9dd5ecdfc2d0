package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/weftlabs/weft/pkg/models"
)

// RouteRepository handles integration route storage.
type RouteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRouteRepository creates a new route repository.
func NewRouteRepository(db *sql.DB, logger *slog.Logger) *RouteRepository {
	return &RouteRepository{db: db, logger: logger}
}

// GetAll returns all routes ordered by registration time.
func (r *RouteRepository) GetAll(ctx context.Context) ([]*models.IntegrationRoute, error) {
	query := `
		SELECT definition
		FROM routes
		ORDER BY registered_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	routes := make([]*models.IntegrationRoute, 0)

	for rows.Next() {
		var raw []byte

		err := rows.Scan(&raw)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route row: %w", err)
		}

		var route models.IntegrationRoute

		err = json.Unmarshal(raw, &route)
		if err != nil {
			return nil, fmt.Errorf("failed to decode route: %w", err)
		}

		routes = append(routes, &route)
	}

	return routes, rows.Err()
}

// Save inserts or replaces a route.
func (r *RouteRepository) Save(ctx context.Context, route *models.IntegrationRoute) error {
	raw, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("failed to encode route: %w", err)
	}

	query := `
		INSERT INTO routes (id, from_integration, to_integration, priority, enabled, definition, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			from_integration = EXCLUDED.from_integration,
			to_integration = EXCLUDED.to_integration,
			priority = EXCLUDED.priority,
			enabled = EXCLUDED.enabled,
			definition = EXCLUDED.definition
	`

	_, err = r.db.ExecContext(ctx, query,
		route.ID, route.FromIntegration, route.ToIntegration, route.Priority, route.Enabled, raw, route.RegisteredAt)
	if err != nil {
		return fmt.Errorf("failed to save route %s: %w", route.ID, err)
	}

	return nil
}
