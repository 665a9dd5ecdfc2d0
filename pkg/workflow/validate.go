package workflow

import (
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/weftlabs/weft/pkg/models"
)

// validateDefinition applies every registration rule and reports the first
// violation.
func (r *Registry) validateDefinition(def *models.WorkflowDefinition) error {
	if def == nil {
		return NewValidationError("workflow is nil")
	}

	if err := r.validate.Struct(def); err != nil {
		return NewValidationError("workflow shape: %v", err)
	}

	if total := countSteps(def.Steps); r.maxSteps > 0 && total > r.maxSteps {
		return NewValidationError("workflow has %d steps, limit is %d", total, r.maxSteps)
	}

	seen := make(map[string]bool)
	if err := r.validateSteps(def.Steps, seen, false); err != nil {
		return err
	}

	topLevel := make(map[string]bool, len(def.Steps))
	for _, step := range def.Steps {
		topLevel[step.ID] = true
	}

	for _, step := range def.Steps {
		for _, dep := range step.DependsOn {
			if !topLevel[dep] {
				return NewValidationError("step %q depends on unknown step %q", step.ID, dep)
			}
		}
	}

	if err := detectCycles(def.Steps); err != nil {
		return err
	}

	return validateTriggers(def.Triggers)
}

func (r *Registry) validateSteps(steps []*models.WorkflowStep, seen map[string]bool, nested bool) error {
	for i, step := range steps {
		if step == nil {
			return NewValidationError("step %d is nil", i)
		}

		if step.ID == "" {
			return NewValidationError("step %d has no id", i)
		}

		if step.Name == "" {
			return NewValidationError("step %q has no name", step.ID)
		}

		if step.Type == "" {
			return NewValidationError("step %q has no type", step.ID)
		}

		if seen[step.ID] {
			return NewValidationError("duplicate step id %q", step.ID)
		}

		seen[step.ID] = true

		if nested && len(step.DependsOn) > 0 {
			return NewValidationError("nested step %q must not declare dependencies", step.ID)
		}

		if err := r.validateStepConfig(step); err != nil {
			return err
		}

		if len(step.Steps) > 0 {
			if err := r.validateSteps(step.Steps, seen, true); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *Registry) validateStepConfig(step *models.WorkflowStep) error {
	switch step.Type {
	case models.StepTypeIntegrationAction:
		if step.IntegrationID == "" {
			return NewValidationError("integration_action step %q has no integration id", step.ID)
		}

		if step.Action == "" {
			return NewValidationError("integration_action step %q has no action", step.ID)
		}
	case models.StepTypeAdvancedBranch:
		if step.Branch == nil || len(step.Branch.Branches) == 0 {
			return NewValidationError("advanced_branch step %q has no branches", step.ID)
		}

		for _, branch := range step.Branch.Branches {
			if branch.ID == "" {
				return NewValidationError("advanced_branch step %q has a branch without an id", step.ID)
			}
		}
	case models.StepTypeAITask:
		if step.AI == nil {
			return NewValidationError("ai_task step %q has no AI configuration", step.ID)
		}
	case models.StepTypeParallel:
		if len(step.Steps) == 0 {
			return NewValidationError("parallel step %q has no nested steps", step.ID)
		}
	}

	return r.validateStepParameters(step)
}

// validateStepParameters checks the step type against the catalog and its
// parameters against the factory's JSON schema.
func (r *Registry) validateStepParameters(step *models.WorkflowStep) error {
	if r.catalog == nil {
		return nil
	}

	factory, ok := r.catalog.Factory(string(step.Type))
	if !ok {
		return NewValidationError("step %q has unknown type %q", step.ID, step.Type)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	params := step.Parameters
	if params == nil {
		params = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(params))
	if err != nil {
		return NewValidationError("step %q parameters: %v", step.ID, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return NewValidationError("step %q parameters: %s", step.ID, strings.Join(messages, "; "))
	}

	return nil
}

// detectCycles runs a depth-first visit over dependsOn edges. Reaching a
// step already on the current visit path is a cycle.
func detectCycles(steps []*models.WorkflowStep) error {
	graph := make(map[string][]string, len(steps))
	for _, step := range steps {
		graph[step.ID] = step.DependsOn
	}

	const (
		visiting = 1
		done     = 2
	)

	state := make(map[string]int, len(graph))

	var visit func(id string) error

	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return NewValidationError("step dependency cycle through %q", id)
		case done:
			return nil
		}

		state[id] = visiting

		for _, dep := range graph[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		state[id] = done

		return nil
	}

	for _, step := range steps {
		if err := visit(step.ID); err != nil {
			return err
		}
	}

	return nil
}

func validateTriggers(triggers []*models.WorkflowTrigger) error {
	for i, trigger := range triggers {
		if trigger == nil {
			return NewValidationError("trigger %d is nil", i)
		}

		switch trigger.Type {
		case models.TriggerTypeManual, models.TriggerTypeWebhook:
		case models.TriggerTypeSchedule:
			expr, _ := trigger.Configuration["cron"].(string)
			if expr == "" {
				return NewValidationError("schedule trigger %d has no cron expression", i)
			}

			if _, err := cron.ParseStandard(expr); err != nil {
				return NewValidationError("schedule trigger %d: %v", i, err)
			}
		case models.TriggerTypeQueue:
			queue, _ := trigger.Configuration["queue"].(string)
			if queue == "" {
				return NewValidationError("queue trigger %d has no queue name", i)
			}
		default:
			return NewValidationError("trigger %d has unknown type %q", i, trigger.Type)
		}
	}

	return nil
}

func countSteps(steps []*models.WorkflowStep) int {
	total := 0
	for _, step := range steps {
		total++

		if step != nil && len(step.Steps) > 0 {
			total += countSteps(step.Steps)
		}
	}

	return total
}
