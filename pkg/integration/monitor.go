package integration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/weftlabs/weft/pkg/eventbus"
	"github.com/weftlabs/weft/pkg/events"
)

// Monitor periodically re-derives each integration's availability from its
// live state and emits an event on every transition. The scheduler's
// admission gate reads the availability flag this monitor maintains, so a
// detected outage blocks new executions without touching in-flight ones.
type Monitor struct {
	registry  *Registry
	interval  time.Duration
	threshold float64
	logger    *slog.Logger
	eventBus  eventbus.EventBus

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewMonitor creates a health monitor over the given registry. The
// threshold is the minimum rolling success rate an integration needs to
// stay available.
func NewMonitor(registry *Registry, interval time.Duration, threshold float64, logger *slog.Logger, eventBus eventbus.EventBus) *Monitor {
	return &Monitor{
		registry:  registry,
		interval:  interval,
		threshold: threshold,
		logger:    logger.With("module", "health_monitor"),
		eventBus:  eventBus,
		done:      make(chan struct{}),
	}
}

// Start launches the periodic evaluation loop and returns immediately.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.logger.InfoContext(ctx, "Health monitor started", "interval", m.interval)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckOnce(ctx)
			}
		}
	}()
}

// Stop terminates the evaluation loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		if m.cancel != nil {
			m.cancel()
			<-m.done
		}
	})
}

// CheckOnce runs a single evaluation pass over every registered
// integration.
func (m *Monitor) CheckOnce(ctx context.Context) {
	now := time.Now().UTC()

	m.registry.mu.RLock()

	records := make([]*record, 0, len(m.registry.records))
	for _, rec := range m.registry.records {
		records = append(records, rec)
	}

	m.registry.mu.RUnlock()

	for _, rec := range records {
		rec.mu.Lock()

		rec.state.LastHealthCheck = now

		available, reason := m.evaluate(rec, now)
		changed := available != rec.state.Available
		rec.state.Available = available

		id := rec.state.IntegrationID
		successRate := rec.state.SuccessRate()

		rec.mu.Unlock()

		if !changed {
			continue
		}

		m.logger.InfoContext(ctx, "Integration availability changed",
			"integration_id", id, "available", available, "reason", reason)

		m.publish(ctx, id, events.IntegrationHealthChanged{
			BaseEvent:     events.NewBaseEvent(events.IntegrationHealthChangedEvent),
			IntegrationID: id,
			Available:     available,
			SuccessRate:   successRate,
			Reason:        reason,
		})
	}
}

// evaluate derives availability for one integration. The caller holds the
// record lock.
func (m *Monitor) evaluate(rec *record, now time.Time) (bool, string) {
	if !rec.state.Connected() {
		return false, "not connected"
	}

	if rate := rec.state.SuccessRate(); rate < m.threshold {
		return false, fmt.Sprintf("success rate %.2f below threshold %.2f", rate, m.threshold)
	}

	if rec.state.RateLimitRemaining <= 0 {
		return false, "rate limit budget exhausted"
	}

	if !now.Before(rec.state.RateLimitResetAt) && rec.state.RateLimitRemaining <= 10 {
		return false, "rate limit window expired with low budget"
	}

	return true, "healthy"
}

func (m *Monitor) publish(ctx context.Context, key string, event eventbus.Event) {
	if m.eventBus == nil {
		return
	}

	if err := m.eventBus.Publish(ctx, key, event); err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish health event",
			"event_type", event.GetType(), "error", err)
	}
}
