package workflow

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/persistence/memory"
	"github.com/weftlabs/weft/pkg/protocol"
)

type stubFactory struct {
	id     string
	schema map[string]any
}

func (f *stubFactory) Create(step *models.WorkflowStep) (protocol.StepHandler, error) {
	return nil, nil
}

func (f *stubFactory) ID() string             { return f.id }
func (f *stubFactory) Name() string           { return f.id }
func (f *stubFactory) Description() string    { return "" }
func (f *stubFactory) Schema() map[string]any { return f.schema }

type stubCatalog map[string]protocol.StepFactory

func (c stubCatalog) Factory(stepType string) (protocol.StepFactory, bool) {
	factory, ok := c[stepType]

	return factory, ok
}

func newCatalogRegistry(t *testing.T, catalog StepCatalog) *Registry {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewRegistry(logger, memory.NewPersistence(), nil, catalog, 100, false)
}

func TestValidateUnknownStepType(t *testing.T) {
	catalog := stubCatalog{
		"wait": &stubFactory{id: "wait"},
	}
	registry := newCatalogRegistry(t, catalog)

	def := &models.WorkflowDefinition{
		Name: "Unknown type",
		Steps: []*models.WorkflowStep{
			{ID: "a", Name: "A", Type: models.StepType("teleport")},
		},
	}

	err := registry.RegisterWorkflow(t.Context(), def)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "unknown type")
}

func TestValidateStepParametersAgainstSchema(t *testing.T) {
	catalog := stubCatalog{
		"wait": &stubFactory{
			id: "wait",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"duration_ms": map[string]any{"type": "number"},
				},
				"required": []any{"duration_ms"},
			},
		},
	}
	registry := newCatalogRegistry(t, catalog)

	invalid := &models.WorkflowDefinition{
		Name: "Bad params",
		Steps: []*models.WorkflowStep{
			{
				ID:         "pause",
				Name:       "Pause",
				Type:       models.StepTypeWait,
				Parameters: map[string]any{"duration_ms": "soon"},
			},
		},
	}

	err := registry.RegisterWorkflow(t.Context(), invalid)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "parameters")

	valid := &models.WorkflowDefinition{
		Name: "Good params",
		Steps: []*models.WorkflowStep{
			{
				ID:         "pause",
				Name:       "Pause",
				Type:       models.StepTypeWait,
				Parameters: map[string]any{"duration_ms": 250},
			},
		},
	}

	require.NoError(t, registry.RegisterWorkflow(t.Context(), valid))
}
