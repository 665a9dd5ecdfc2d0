package models

// ExecutionContext is the read view a step handler receives: the variable
// bag accumulated so far plus the raw trigger payload and prior step
// results. Handlers must treat it as immutable; the executor owns merging
// results back into the execution.
type ExecutionContext struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
	StepResults map[string]any `json:"step_results,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
