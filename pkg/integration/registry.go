// Package integration implements the capability registry for external
// service integrations: registration, live usage and rate-limit state,
// breaker-guarded action dispatch, and periodic health evaluation.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"

	"github.com/weftlabs/weft/pkg/eventbus"
	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

const (
	// defaultHourlyBudget applies when a capability declares no hourly
	// rate limit.
	defaultHourlyBudget = 1000

	rateLimitWindow = time.Hour
)

// record pairs a capability with its runtime state under one lock, so
// concurrently running integration_action steps never tear counters.
type record struct {
	mu         sync.Mutex
	capability models.IntegrationCapability
	state      models.IntegrationState
	breaker    *gobreaker.CircuitBreaker
}

// Registry tracks registered integrations and dispatches actions against
// them. It implements protocol.IntegrationAdapter with availability and
// rate-limit gating in front of the injected adapter.
type Registry struct {
	logger    *slog.Logger
	eventBus  eventbus.EventBus
	adapter   protocol.IntegrationAdapter
	validator *validator.Validate

	mu      sync.RWMutex
	records map[string]*record
}

// NewRegistry creates an integration registry. The adapter performs the
// real outbound calls; a nil adapter makes dispatch return a descriptive
// intent record, which keeps the engine self-contained for local runs and
// tests.
func NewRegistry(logger *slog.Logger, eventBus eventbus.EventBus, adapter protocol.IntegrationAdapter) *Registry {
	return &Registry{
		logger:    logger.With("module", "integration_registry"),
		eventBus:  eventBus,
		adapter:   adapter,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		records:   make(map[string]*record),
	}
}

// Register stores a capability and initializes fresh runtime state with a
// full rate-limit budget. Re-registering an id replaces the capability and
// resets its state.
func (r *Registry) Register(ctx context.Context, capability *models.IntegrationCapability) error {
	if capability == nil {
		return fmt.Errorf("register integration: capability is nil")
	}

	if err := r.validator.Struct(capability); err != nil {
		return fmt.Errorf("register integration: %w", err)
	}

	now := time.Now().UTC()
	capability.RegisteredAt = now

	budget := capability.RateLimit.RequestsPerHour
	if budget <= 0 {
		budget = defaultHourlyBudget
	}

	rec := &record{
		capability: *capability,
		state: models.IntegrationState{
			IntegrationID:      capability.ID,
			Status:             models.ConnectionStatusDisconnected,
			Available:          true,
			RateLimitRemaining: budget,
			RateLimitResetAt:   now.Add(rateLimitWindow),
		},
	}
	rec.breaker = r.newBreaker(capability.ID)

	r.mu.Lock()
	r.records[capability.ID] = rec
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Integration registered",
		"integration_id", capability.ID, "actions", len(capability.Actions))

	r.publish(ctx, capability.ID, events.IntegrationRegistered{
		BaseEvent:     events.NewBaseEvent(events.IntegrationRegisteredEvent),
		IntegrationID: capability.ID,
		Name:          capability.Name,
		Actions:       capability.Actions,
	})

	return nil
}

// Unregister removes a capability and its state. Unknown ids are a no-op:
// no error and no event.
func (r *Registry) Unregister(ctx context.Context, id string) {
	r.mu.Lock()

	_, exists := r.records[id]
	if exists {
		delete(r.records, id)
	}

	r.mu.Unlock()

	if !exists {
		return
	}

	r.logger.InfoContext(ctx, "Integration unregistered", "integration_id", id)

	r.publish(ctx, id, events.IntegrationUnregistered{
		BaseEvent:     events.NewBaseEvent(events.IntegrationUnregisteredEvent),
		IntegrationID: id,
	})
}

// StateUpdate is a partial update to an integration's runtime state. Nil
// fields are left untouched.
type StateUpdate struct {
	Status             *models.ConnectionStatus
	Available          *bool
	AvgResponseTimeMs  *float64
	RateLimitRemaining *int
	RateLimitResetAt   *time.Time
	LastError          *string
}

// UpdateState merges a partial update into an integration's state and
// emits a state-updated event. Unknown ids are a no-op.
func (r *Registry) UpdateState(ctx context.Context, id string, update StateUpdate) {
	rec := r.record(id)
	if rec == nil {
		return
	}

	rec.mu.Lock()

	if update.Status != nil {
		rec.state.Status = *update.Status
	}

	if update.Available != nil {
		rec.state.Available = *update.Available
	}

	if update.AvgResponseTimeMs != nil {
		rec.state.AvgResponseTimeMs = *update.AvgResponseTimeMs
	}

	if update.RateLimitRemaining != nil {
		rec.state.RateLimitRemaining = *update.RateLimitRemaining
	}

	if update.RateLimitResetAt != nil {
		rec.state.RateLimitResetAt = *update.RateLimitResetAt
	}

	if update.LastError != nil {
		rec.state.LastError = *update.LastError
	}

	status := rec.state.Status
	available := rec.state.Available

	rec.mu.Unlock()

	r.publish(ctx, id, events.IntegrationStateUpdated{
		BaseEvent:     events.NewBaseEvent(events.IntegrationStateUpdatedEvent),
		IntegrationID: id,
		Status:        string(status),
		Available:     available,
	})
}

// Execute dispatches one action against an integration, gating on
// availability and rate-limit budget and accounting for the call in the
// integration's state. It satisfies protocol.IntegrationAdapter.
func (r *Registry) Execute(ctx context.Context, integrationID, action string, params map[string]any) (any, error) {
	rec := r.record(integrationID)
	if rec == nil {
		return nil, NewDispatchError(integrationID, action, ErrIntegrationNotFound)
	}

	now := time.Now().UTC()

	rec.mu.Lock()

	// A new window restores the full budget before the gate is checked.
	if !now.Before(rec.state.RateLimitResetAt) {
		rec.state.RateLimitRemaining = rec.hourlyBudget()
		rec.state.RateLimitResetAt = now.Add(rateLimitWindow)
	}

	if !rec.state.Available {
		rec.mu.Unlock()

		return nil, NewDispatchError(integrationID, action, ErrIntegrationUnavailable)
	}

	if rec.state.RateLimitRemaining <= 0 {
		rec.mu.Unlock()

		return nil, NewDispatchError(integrationID, action, ErrRateLimited)
	}

	rec.state.UsageCount++
	rec.state.LastUsedAt = now
	rec.state.RateLimitRemaining--

	rec.mu.Unlock()

	started := time.Now()

	result, err := rec.breaker.Execute(func() (any, error) {
		return r.dispatch(ctx, integrationID, action, params)
	})

	elapsedMs := float64(time.Since(started)) / float64(time.Millisecond)

	rec.mu.Lock()

	if err != nil {
		rec.state.ErrorCount++
		rec.state.Status = models.ConnectionStatusError
		rec.state.LastError = err.Error()
	} else {
		rec.state.SuccessCount++
		rec.state.Status = models.ConnectionStatusConnected
		rec.state.LastError = ""
	}

	samples := rec.state.SuccessCount + rec.state.ErrorCount
	rec.state.AvgResponseTimeMs = incrementalMean(rec.state.AvgResponseTimeMs, elapsedMs, samples)

	rec.mu.Unlock()

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrIntegrationUnavailable, err)
		}

		return nil, NewDispatchError(integrationID, action, err)
	}

	return result, nil
}

// Capabilities returns the registered capabilities sorted by id.
func (r *Registry) Capabilities() []models.IntegrationCapability {
	r.mu.RLock()

	capabilities := make([]models.IntegrationCapability, 0, len(r.records))
	for _, rec := range r.records {
		rec.mu.Lock()
		capabilities = append(capabilities, rec.capability)
		rec.mu.Unlock()
	}

	r.mu.RUnlock()

	sort.Slice(capabilities, func(i, j int) bool {
		return capabilities[i].ID < capabilities[j].ID
	})

	return capabilities
}

// Available reports whether the integration can currently accept
// dispatches. Unknown ids report false.
func (r *Registry) Available(id string) bool {
	rec := r.record(id)
	if rec == nil {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.state.Available
}

// Health returns the health snapshot of one integration.
func (r *Registry) Health(id string) (models.IntegrationHealth, error) {
	rec := r.record(id)
	if rec == nil {
		return models.IntegrationHealth{}, fmt.Errorf("health %s: %w", id, ErrIntegrationNotFound)
	}

	return rec.health(), nil
}

// HealthAll returns health snapshots for every registered integration,
// keyed by id.
func (r *Registry) HealthAll() map[string]models.IntegrationHealth {
	r.mu.RLock()

	snapshots := make(map[string]models.IntegrationHealth, len(r.records))
	for id, rec := range r.records {
		snapshots[id] = rec.health()
	}

	r.mu.RUnlock()

	return snapshots
}

// Count returns the number of registered integrations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

func (r *Registry) record(id string) *record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.records[id]
}

func (r *Registry) dispatch(ctx context.Context, integrationID, action string, params map[string]any) (any, error) {
	if r.adapter != nil {
		return r.adapter.Execute(ctx, integrationID, action, params)
	}

	// Without a real adapter the dispatch records the emitted intent for
	// the surrounding system to act on.
	return map[string]any{
		"integration":   integrationID,
		"action":        action,
		"params":        params,
		"dispatched_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (r *Registry) newBreaker(id string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: id,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Info("Integration circuit breaker state changed",
				"integration_id", name, "from", from.String(), "to", to.String())
		},
	})
}

func (r *Registry) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.eventBus == nil {
		return
	}

	if err := r.eventBus.Publish(ctx, key, event); err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish integration event",
			"event_type", event.GetType(), "error", err)
	}
}

func (rec *record) hourlyBudget() int {
	if rec.capability.RateLimit.RequestsPerHour > 0 {
		return rec.capability.RateLimit.RequestsPerHour
	}

	return defaultHourlyBudget
}

func (rec *record) health() models.IntegrationHealth {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return models.IntegrationHealth{
		IntegrationID:      rec.state.IntegrationID,
		Available:          rec.state.Available,
		Status:             rec.state.Status,
		SuccessRate:        rec.state.SuccessRate(),
		AvgResponseTimeMs:  rec.state.AvgResponseTimeMs,
		UsageCount:         rec.state.UsageCount,
		ErrorCount:         rec.state.ErrorCount,
		RateLimitRemaining: rec.state.RateLimitRemaining,
		RateLimitResetAt:   rec.state.RateLimitResetAt,
		LastHealthCheck:    rec.state.LastHealthCheck,
		LastError:          rec.state.LastError,
	}
}

// incrementalMean folds one sample into a rolling average without keeping
// history: avg' = (avg*(n-1) + sample) / n.
func incrementalMean(avg, sample float64, n int64) float64 {
	if n <= 0 {
		return sample
	}

	return (avg*float64(n-1) + sample) / float64(n)
}
