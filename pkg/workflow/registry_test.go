package workflow

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/mocks"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence"
	"github.com/weftlabs/weft/pkg/persistence/memory"
)

func newTestRegistry(t *testing.T) (*Registry, *memory.Persistence, *mocks.MockEventBus) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := memory.NewPersistence()

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return NewRegistry(logger, store, eventBus, nil, 100, true), store, eventBus
}

func twoStepDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Name:    "Sync tickets",
		Enabled: true,
		Steps: []*models.WorkflowStep{
			{
				ID:   "fetch",
				Name: "Fetch tickets",
				Type: models.StepTypeIntegrationAction,

				IntegrationID: "jira",
				Action:        "search_issues",
			},
			{
				ID:        "notify",
				Name:      "Notify channel",
				Type:      models.StepTypeNotification,
				DependsOn: []string{"fetch"},
			},
		},
	}
}

func TestRegisterWorkflow(t *testing.T) {
	registry, store, eventBus := newTestRegistry(t)

	def := twoStepDefinition()
	require.NoError(t, registry.RegisterWorkflow(t.Context(), def))

	assert.NotEmpty(t, def.ID)
	assert.False(t, def.CreatedAt.IsZero())
	assert.False(t, def.UpdatedAt.IsZero())

	stored, err := store.WorkflowByID(t.Context(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sync tickets", stored.Name)

	analytics, err := store.AnalyticsByWorkflowID(t.Context(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), analytics.TotalExecutions)

	registered := eventBus.PublishedEvents(events.WorkflowRegisteredEvent)
	require.Len(t, registered, 1)
}

func TestRegisterWorkflowCycleRejected(t *testing.T) {
	registry, store, _ := newTestRegistry(t)

	def := &models.WorkflowDefinition{
		ID:   "cyclic",
		Name: "Cyclic workflow",
		Steps: []*models.WorkflowStep{
			{ID: "a", Name: "A", Type: models.StepTypeWait, DependsOn: []string{"b"}},
			{ID: "b", Name: "B", Type: models.StepTypeWait, DependsOn: []string{"a"}},
		},
	}

	err := registry.RegisterWorkflow(t.Context(), def)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "cycle")

	// Nothing was stored.
	_, err = store.WorkflowByID(t.Context(), "cyclic")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRegisterWorkflowSelfCycle(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	def := &models.WorkflowDefinition{
		Name: "Self loop",
		Steps: []*models.WorkflowStep{
			{ID: "a", Name: "A", Type: models.StepTypeWait, DependsOn: []string{"a"}},
		},
	}

	err := registry.RegisterWorkflow(t.Context(), def)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestRegisterWorkflowViolations(t *testing.T) {
	tests := []struct {
		name     string
		def      *models.WorkflowDefinition
		contains string
	}{
		{
			name:     "no steps",
			def:      &models.WorkflowDefinition{Name: "Empty workflow"},
			contains: "shape",
		},
		{
			name: "step without id",
			def: &models.WorkflowDefinition{
				Name: "Bad step",
				Steps: []*models.WorkflowStep{
					{Name: "No id", Type: models.StepTypeWait},
				},
			},
			contains: "has no id",
		},
		{
			name: "step without name",
			def: &models.WorkflowDefinition{
				Name: "Bad step",
				Steps: []*models.WorkflowStep{
					{ID: "a", Type: models.StepTypeWait},
				},
			},
			contains: "has no name",
		},
		{
			name: "step without type",
			def: &models.WorkflowDefinition{
				Name: "Bad step",
				Steps: []*models.WorkflowStep{
					{ID: "a", Name: "A"},
				},
			},
			contains: "has no type",
		},
		{
			name: "duplicate step ids",
			def: &models.WorkflowDefinition{
				Name: "Duplicated",
				Steps: []*models.WorkflowStep{
					{ID: "a", Name: "A", Type: models.StepTypeWait},
					{ID: "a", Name: "A again", Type: models.StepTypeWait},
				},
			},
			contains: "duplicate step id",
		},
		{
			name: "dangling dependency",
			def: &models.WorkflowDefinition{
				Name: "Dangling",
				Steps: []*models.WorkflowStep{
					{ID: "a", Name: "A", Type: models.StepTypeWait, DependsOn: []string{"ghost"}},
				},
			},
			contains: "unknown step",
		},
		{
			name: "integration action without action",
			def: &models.WorkflowDefinition{
				Name: "No action",
				Steps: []*models.WorkflowStep{
					{ID: "a", Name: "A", Type: models.StepTypeIntegrationAction, IntegrationID: "jira"},
				},
			},
			contains: "has no action",
		},
		{
			name: "integration action without integration",
			def: &models.WorkflowDefinition{
				Name: "No integration",
				Steps: []*models.WorkflowStep{
					{ID: "a", Name: "A", Type: models.StepTypeIntegrationAction, Action: "create"},
				},
			},
			contains: "has no integration id",
		},
		{
			name: "advanced branch without branches",
			def: &models.WorkflowDefinition{
				Name: "No branches",
				Steps: []*models.WorkflowStep{
					{ID: "a", Name: "A", Type: models.StepTypeAdvancedBranch},
				},
			},
			contains: "has no branches",
		},
		{
			name: "ai task without config",
			def: &models.WorkflowDefinition{
				Name: "No AI config",
				Steps: []*models.WorkflowStep{
					{ID: "a", Name: "A", Type: models.StepTypeAITask},
				},
			},
			contains: "has no AI configuration",
		},
		{
			name: "parallel without children",
			def: &models.WorkflowDefinition{
				Name: "Empty parallel",
				Steps: []*models.WorkflowStep{
					{ID: "a", Name: "A", Type: models.StepTypeParallel},
				},
			},
			contains: "has no nested steps",
		},
		{
			name: "nested step with dependencies",
			def: &models.WorkflowDefinition{
				Name: "Bad nesting",
				Steps: []*models.WorkflowStep{
					{
						ID:   "par",
						Name: "Parallel",
						Type: models.StepTypeParallel,
						Steps: []*models.WorkflowStep{
							{ID: "child", Name: "Child", Type: models.StepTypeWait, DependsOn: []string{"par"}},
						},
					},
				},
			},
			contains: "must not declare dependencies",
		},
		{
			name: "invalid cron trigger",
			def: &models.WorkflowDefinition{
				Name: "Bad cron",
				Steps: []*models.WorkflowStep{
					{ID: "a", Name: "A", Type: models.StepTypeWait},
				},
				Triggers: []*models.WorkflowTrigger{
					{Type: models.TriggerTypeSchedule, Configuration: map[string]any{"cron": "not a cron"}},
				},
			},
			contains: "schedule trigger",
		},
		{
			name: "queue trigger without queue",
			def: &models.WorkflowDefinition{
				Name: "No queue",
				Steps: []*models.WorkflowStep{
					{ID: "a", Name: "A", Type: models.StepTypeWait},
				},
				Triggers: []*models.WorkflowTrigger{
					{Type: models.TriggerTypeQueue},
				},
			},
			contains: "has no queue name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, _, _ := newTestRegistry(t)

			err := registry.RegisterWorkflow(t.Context(), tt.def)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestRegisterWorkflowStepLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	registry := NewRegistry(logger, memory.NewPersistence(), nil, nil, 2, false)

	def := &models.WorkflowDefinition{
		Name: "Too many",
		Steps: []*models.WorkflowStep{
			{ID: "a", Name: "A", Type: models.StepTypeWait},
			{ID: "b", Name: "B", Type: models.StepTypeWait},
			{ID: "c", Name: "C", Type: models.StepTypeWait},
		},
	}

	err := registry.RegisterWorkflow(t.Context(), def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit is 2")
}

func TestRegisterRoute(t *testing.T) {
	registry, store, eventBus := newTestRegistry(t)

	route := &models.IntegrationRoute{
		FromIntegration: "jira",
		ToIntegration:   "slack",
		Priority:        5,
		Enabled:         true,
	}

	require.NoError(t, registry.RegisterRoute(t.Context(), route))
	assert.NotEmpty(t, route.ID)
	assert.False(t, route.RegisteredAt.IsZero())

	routes, err := store.Routes(t.Context())
	require.NoError(t, err)
	assert.Len(t, routes, 1)

	registered := eventBus.PublishedEvents(events.RouteRegisteredEvent)
	require.Len(t, registered, 1)
}

func TestRegisterRouteValidation(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	err := registry.RegisterRoute(t.Context(), &models.IntegrationRoute{ToIntegration: "slack"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestFindOptimalRouteExactWins(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	// Higher priority, registered first.
	alternative := &models.IntegrationRoute{
		ID:              "alt",
		FromIntegration: "jira",
		ToIntegration:   "slack",
		Priority:        100,
		Enabled:         true,
	}
	require.NoError(t, registry.RegisterRoute(t.Context(), alternative))

	// Lower priority, registered last: this is the active exact-key route.
	active := &models.IntegrationRoute{
		ID:              "active",
		FromIntegration: "jira",
		ToIntegration:   "slack",
		Priority:        1,
		Enabled:         true,
		Conditions: []*models.StepCondition{
			{Field: "severity", Operator: "equals", Value: "high"},
		},
	}
	require.NoError(t, registry.RegisterRoute(t.Context(), active))

	// Conditions match: the exact route wins despite lower priority.
	route, found := registry.FindOptimalRoute(t.Context(), "jira", "slack", map[string]any{"severity": "high"})
	require.True(t, found)
	assert.Equal(t, "active", route.ID)

	// Conditions fail: fall through to the highest-priority alternative.
	route, found = registry.FindOptimalRoute(t.Context(), "jira", "slack", map[string]any{"severity": "low"})
	require.True(t, found)
	assert.Equal(t, "alt", route.ID)
}

func TestFindOptimalRoutePriorityOrder(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	low := &models.IntegrationRoute{
		ID: "low", FromIntegration: "box", ToIntegration: "drive", Priority: 1, Enabled: true,
	}
	high := &models.IntegrationRoute{
		ID: "high", FromIntegration: "box", ToIntegration: "drive", Priority: 9, Enabled: true,
	}
	disabledTop := &models.IntegrationRoute{
		ID: "disabled", FromIntegration: "box", ToIntegration: "drive", Priority: 50,
	}

	require.NoError(t, registry.RegisterRoute(t.Context(), high))
	require.NoError(t, registry.RegisterRoute(t.Context(), low))
	require.NoError(t, registry.RegisterRoute(t.Context(), disabledTop))

	// The exact slot holds the disabled route, so the scan decides.
	route, found := registry.FindOptimalRoute(t.Context(), "box", "drive", nil)
	require.True(t, found)
	assert.Equal(t, "high", route.ID)
}

func TestFindOptimalRouteNone(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	_, found := registry.FindOptimalRoute(t.Context(), "jira", "slack", nil)
	assert.False(t, found)

	gated := &models.IntegrationRoute{
		ID:              "gated",
		FromIntegration: "jira",
		ToIntegration:   "slack",
		Enabled:         true,
		Conditions: []*models.StepCondition{
			{Field: "kind", Operator: "equals", Value: "bug"},
		},
	}
	require.NoError(t, registry.RegisterRoute(t.Context(), gated))

	_, found = registry.FindOptimalRoute(t.Context(), "jira", "slack", map[string]any{"kind": "feature"})
	assert.False(t, found)
}

func TestFindOptimalRouteCacheInvalidation(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	first := &models.IntegrationRoute{
		ID: "first", FromIntegration: "asana", ToIntegration: "linear", Priority: 1, Enabled: true,
	}
	require.NoError(t, registry.RegisterRoute(t.Context(), first))

	// Prime the candidate cache.
	route, found := registry.FindOptimalRoute(t.Context(), "asana", "linear", nil)
	require.True(t, found)
	assert.Equal(t, "first", route.ID)

	second := &models.IntegrationRoute{
		ID: "second", FromIntegration: "asana", ToIntegration: "linear", Priority: 2, Enabled: true,
	}
	require.NoError(t, registry.RegisterRoute(t.Context(), second))

	route, found = registry.FindOptimalRoute(t.Context(), "asana", "linear", nil)
	require.True(t, found)
	assert.Equal(t, "second", route.ID)
}

func TestLoadRebuildsExactSlots(t *testing.T) {
	registry, store, _ := newTestRegistry(t)

	older := &models.IntegrationRoute{
		ID:              "older",
		FromIntegration: "jira",
		ToIntegration:   "slack",
		Priority:        100,
		Enabled:         true,
		RegisteredAt:    time.Now().UTC().Add(-time.Hour),
	}
	newer := &models.IntegrationRoute{
		ID:              "newer",
		FromIntegration: "jira",
		ToIntegration:   "slack",
		Priority:        1,
		Enabled:         true,
		RegisteredAt:    time.Now().UTC(),
	}

	require.NoError(t, store.SaveRoute(t.Context(), older))
	require.NoError(t, store.SaveRoute(t.Context(), newer))

	require.NoError(t, registry.Load(t.Context()))

	route, found := registry.FindOptimalRoute(t.Context(), "jira", "slack", nil)
	require.True(t, found)
	assert.Equal(t, "newer", route.ID)
}
