// Package registry is the catalog of step and trigger factories available
// to the engine. Factories are registered during wiring and looked up by
// type when workflows are validated and executed.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Registry maps step and trigger types to their factories. Registration
// happens once during startup; lookups after that are read-only.
type Registry struct {
	logger           *slog.Logger
	stepFactories    map[string]protocol.StepFactory
	triggerFactories map[string]protocol.TriggerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:           logger.With("module", "registry"),
		stepFactories:    make(map[string]protocol.StepFactory),
		triggerFactories: make(map[string]protocol.TriggerFactory),
	}
}

// RegisterStep adds a step factory under its declared type. Registering the
// same type twice replaces the earlier factory.
func (r *Registry) RegisterStep(factory protocol.StepFactory) {
	r.stepFactories[factory.ID()] = factory
	r.logger.Debug("Registered step factory", "step_type", factory.ID())
}

func (r *Registry) RegisterTrigger(factory protocol.TriggerFactory) {
	r.triggerFactories[factory.ID()] = factory
	r.logger.Debug("Registered trigger factory", "trigger_type", factory.ID())
}

// Factory returns the factory for a step type. It satisfies the catalog
// interface the workflow registry validates definitions against.
func (r *Registry) Factory(stepType string) (protocol.StepFactory, bool) {
	factory, ok := r.stepFactories[stepType]

	return factory, ok
}

// CreateStep builds a handler for the given step from its type's factory.
func (r *Registry) CreateStep(step *models.WorkflowStep) (protocol.StepHandler, error) {
	factory, ok := r.stepFactories[string(step.Type)]
	if !ok {
		return nil, fmt.Errorf("step type '%s' not registered", step.Type)
	}

	return factory.Create(step)
}

func (r *Registry) CreateTrigger(triggerType string, config map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	factory, ok := r.triggerFactories[triggerType]
	if !ok {
		return nil, fmt.Errorf("trigger type '%s' not registered", triggerType)
	}

	return factory.Create(config, logger)
}

// AvailableSteps returns the registered step factories sorted by type.
func (r *Registry) AvailableSteps() []protocol.StepFactory {
	factories := make([]protocol.StepFactory, 0, len(r.stepFactories))
	for _, factory := range r.stepFactories {
		factories = append(factories, factory)
	}

	sort.Slice(factories, func(i, j int) bool {
		return factories[i].ID() < factories[j].ID()
	})

	return factories
}

// AvailableTriggers returns the registered trigger types sorted.
func (r *Registry) AvailableTriggers() []string {
	types := make([]string, 0, len(r.triggerFactories))
	for id := range r.triggerFactories {
		types = append(types, id)
	}

	sort.Strings(types)

	return types
}

// StepSchemas returns the parameter schema for every registered step type,
// keyed by type. The API serves this as the step catalog.
func (r *Registry) StepSchemas() map[string]map[string]any {
	schemas := make(map[string]map[string]any, len(r.stepFactories))
	for id, factory := range r.stepFactories {
		schemas[id] = factory.Schema()
	}

	return schemas
}
