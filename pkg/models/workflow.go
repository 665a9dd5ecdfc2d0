package models

import "time"

// TriggerType identifies how a workflow execution gets initiated.
type TriggerType string

const (
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeQueue    TriggerType = "queue"
	TriggerTypeWebhook  TriggerType = "webhook"
)

// WorkflowTrigger declares one way a workflow may be started. Configuration
// is trigger-specific: a cron expression for schedule triggers, a queue name
// for queue triggers, a path for webhook triggers.
type WorkflowTrigger struct {
	Type          TriggerType    `json:"type" validate:"required"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// ExecutionSettings carries per-workflow execution tuning. Zero values fall
// back to the engine defaults.
type ExecutionSettings struct {
	TimeoutMs     int64 `json:"timeout_ms,omitempty"`
	RetryAttempts int   `json:"retry_attempts,omitempty"`
}

// WorkflowDefinition is a registered multi-step workflow. The step set must
// form a DAG over depends_on references; registration enforces this.
type WorkflowDefinition struct {
	ID          string             `json:"id"`
	Name        string             `json:"name" validate:"required,min=3"`
	Description string             `json:"description,omitempty"`
	Steps       []*WorkflowStep    `json:"steps" validate:"required,min=1"`
	Triggers    []*WorkflowTrigger `json:"triggers,omitempty"`
	Settings    ExecutionSettings  `json:"settings"`
	Variables   map[string]any     `json:"variables,omitempty"` // Defaults seeded into the execution variable bag
	Metadata    map[string]any     `json:"metadata,omitempty"`
	Enabled     bool               `json:"enabled"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// StepByID returns the top-level step with the given id, or nil.
func (w *WorkflowDefinition) StepByID(id string) *WorkflowStep {
	for _, step := range w.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

// IntegrationIDs returns the distinct integrations referenced by
// integration_action steps, in declaration order.
func (w *WorkflowDefinition) IntegrationIDs() []string {
	seen := make(map[string]bool)
	ids := make([]string, 0)

	var walk func(steps []*WorkflowStep)
	walk = func(steps []*WorkflowStep) {
		for _, step := range steps {
			if step.Type == StepTypeIntegrationAction && step.IntegrationID != "" && !seen[step.IntegrationID] {
				seen[step.IntegrationID] = true
				ids = append(ids, step.IntegrationID)
			}

			if len(step.Steps) > 0 {
				walk(step.Steps)
			}
		}
	}
	walk(w.Steps)

	return ids
}
