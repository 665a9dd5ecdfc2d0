// Package workflow implements the definition and route registries:
// validation at registration time, persistence, and optimal-route lookup.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/weftlabs/weft/pkg/condition"
	"github.com/weftlabs/weft/pkg/eventbus"
	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
	"github.com/weftlabs/weft/pkg/protocol"
)

const (
	routeCacheTTL     = 5 * time.Minute
	routeCacheCleanup = 10 * time.Minute
)

// StepCatalog resolves step types to their factories. The registry uses it
// to reject unknown step types and to validate step parameters against the
// factory schema.
type StepCatalog interface {
	Factory(stepType string) (protocol.StepFactory, bool)
}

// Registry stores validated workflow definitions and integration routes.
type Registry struct {
	logger       *slog.Logger
	store        persistence.Persistence
	eventBus     eventbus.EventBus
	catalog      StepCatalog
	validate     *validator.Validate
	maxSteps     int
	cacheEnabled bool
	routeCache   *gocache.Cache

	mu    sync.RWMutex
	exact map[string]string // integration pair -> active route id
}

// NewRegistry creates a workflow/route registry on top of the given store.
// A nil catalog skips step-type and parameter-schema checks.
func NewRegistry(logger *slog.Logger, store persistence.Persistence, eventBus eventbus.EventBus, catalog StepCatalog, maxSteps int, cacheEnabled bool) *Registry {
	r := &Registry{
		logger:       logger.With("module", "workflow_registry"),
		store:        store,
		eventBus:     eventBus,
		catalog:      catalog,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		maxSteps:     maxSteps,
		cacheEnabled: cacheEnabled,
		routeCache:   gocache.New(routeCacheTTL, routeCacheCleanup),
		exact:        make(map[string]string),
	}

	return r
}

// RegisterWorkflow validates and stores a definition, initializing a zeroed
// analytics record for it. The first violation found fails registration
// with a ValidationError and nothing is stored.
func (r *Registry) RegisterWorkflow(ctx context.Context, def *models.WorkflowDefinition) error {
	if err := r.validateDefinition(def); err != nil {
		return err
	}

	now := time.Now().UTC()

	if def.ID == "" {
		def.ID = uuid.New().String()
	}

	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}

	def.UpdatedAt = now

	if err := r.store.SaveWorkflow(ctx, def); err != nil {
		return fmt.Errorf("save workflow %s: %w", def.ID, err)
	}

	if err := r.store.SaveAnalytics(ctx, models.NewWorkflowAnalytics(def.ID)); err != nil {
		return fmt.Errorf("initialize analytics for workflow %s: %w", def.ID, err)
	}

	r.logger.InfoContext(ctx, "Workflow registered",
		"workflow_id", def.ID, "name", def.Name, "steps", len(def.Steps))

	r.publish(ctx, def.ID, events.WorkflowRegistered{
		BaseEvent:  events.NewBaseEvent(events.WorkflowRegisteredEvent),
		WorkflowID: def.ID,
		Name:       def.Name,
		StepCount:  len(def.Steps),
	})

	return nil
}

// Workflows returns every registered definition.
func (r *Registry) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return r.store.Workflows(ctx)
}

// WorkflowByID returns one definition by id.
func (r *Registry) WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return r.store.WorkflowByID(ctx, id)
}

// DeleteWorkflow removes a definition.
func (r *Registry) DeleteWorkflow(ctx context.Context, id string) error {
	return r.store.DeleteWorkflow(ctx, id)
}

// RegisterRoute validates and stores a route. The route becomes the active
// route for its integration pair; previously registered routes for the
// pair remain as priority-ranked alternatives.
func (r *Registry) RegisterRoute(ctx context.Context, route *models.IntegrationRoute) error {
	if route == nil {
		return NewValidationError("route is nil")
	}

	if err := r.validate.Struct(route); err != nil {
		return NewValidationError("route %s: %v", route.ID, err)
	}

	if route.ID == "" {
		route.ID = uuid.New().String()
	}

	route.RegisteredAt = time.Now().UTC()

	if err := r.store.SaveRoute(ctx, route); err != nil {
		return fmt.Errorf("save route %s: %w", route.ID, err)
	}

	key := route.Key()

	r.mu.Lock()
	r.exact[key] = route.ID
	r.mu.Unlock()

	r.routeCache.Delete(key)

	r.logger.InfoContext(ctx, "Route registered",
		"route_id", route.ID, "from", route.FromIntegration, "to", route.ToIntegration,
		"priority", route.Priority)

	r.publish(ctx, route.ID, events.RouteRegistered{
		BaseEvent:       events.NewBaseEvent(events.RouteRegisteredEvent),
		RouteID:         route.ID,
		FromIntegration: route.FromIntegration,
		ToIntegration:   route.ToIntegration,
		Priority:        route.Priority,
	})

	return nil
}

// Routes returns every registered route.
func (r *Registry) Routes(ctx context.Context) ([]*models.IntegrationRoute, error) {
	return r.store.Routes(ctx)
}

// FindOptimalRoute picks the route to move data between two integrations.
// The exact-key route (the latest registered for the pair) wins when it is
// enabled and its conditions match the data; otherwise the enabled,
// condition-matching candidates compete on priority, highest first.
func (r *Registry) FindOptimalRoute(ctx context.Context, from, to string, data map[string]any) (*models.IntegrationRoute, bool) {
	key := models.RouteKey(from, to)

	candidates, err := r.pairRoutes(ctx, key, from, to)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to load routes", "pair", key, "error", err)

		return nil, false
	}

	r.mu.RLock()
	exactID := r.exact[key]
	r.mu.RUnlock()

	if exactID != "" {
		for _, route := range candidates {
			if route.ID == exactID && route.Enabled && condition.EvaluateAll(route.Conditions, data) {
				return route, true
			}
		}
	}

	var best *models.IntegrationRoute

	for _, route := range candidates {
		if !route.Enabled || !condition.EvaluateAll(route.Conditions, data) {
			continue
		}

		if best == nil || route.Priority > best.Priority {
			best = route
		}
	}

	if best == nil {
		return nil, false
	}

	return best, true
}

// Load rebuilds the per-pair active-route slots from the store. Call once
// at startup when the store is durable.
func (r *Registry) Load(ctx context.Context) error {
	routes, err := r.store.Routes(ctx)
	if err != nil {
		return fmt.Errorf("load routes: %w", err)
	}

	latest := make(map[string]*models.IntegrationRoute)

	for _, route := range routes {
		key := route.Key()
		if current, ok := latest[key]; !ok || route.RegisteredAt.After(current.RegisteredAt) {
			latest[key] = route
		}
	}

	r.mu.Lock()

	r.exact = make(map[string]string, len(latest))
	for key, route := range latest {
		r.exact[key] = route.ID
	}

	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Route registry loaded",
		"routes", len(routes), "pairs", len(latest))

	return nil
}

// pairRoutes returns all routes for a pair, in registration order.
func (r *Registry) pairRoutes(ctx context.Context, key, from, to string) ([]*models.IntegrationRoute, error) {
	if r.cacheEnabled {
		if cached, found := r.routeCache.Get(key); found {
			if routes, ok := cached.([]*models.IntegrationRoute); ok {
				return routes, nil
			}
		}
	}

	all, err := r.store.Routes(ctx)
	if err != nil {
		return nil, err
	}

	routes := make([]*models.IntegrationRoute, 0)

	for _, route := range all {
		if route.FromIntegration == from && route.ToIntegration == to {
			routes = append(routes, route)
		}
	}

	if r.cacheEnabled {
		r.routeCache.Set(key, routes, gocache.DefaultExpiration)
	}

	return routes, nil
}

func (r *Registry) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.eventBus == nil {
		return
	}

	if err := r.eventBus.Publish(ctx, key, event); err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish registry event",
			"event_type", event.GetType(), "error", err)
	}
}
