package conditionstep

import (
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// ConditionStepFactory creates ConditionStep handlers.
type ConditionStepFactory struct{}

func NewConditionStepFactory() protocol.StepFactory {
	return &ConditionStepFactory{}
}

func (f *ConditionStepFactory) Create(step *models.WorkflowStep) (protocol.StepHandler, error) {
	return NewConditionStep(step)
}

func (f *ConditionStepFactory) ID() string {
	return string(models.StepTypeCondition)
}

func (f *ConditionStepFactory) Name() string {
	return "Condition"
}

func (f *ConditionStepFactory) Description() string {
	return "Evaluates a field comparison against the execution variables and records the boolean result"
}

func (f *ConditionStepFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field": map[string]any{
				"type":        "string",
				"description": "Dotted path into the execution variables",
			},
			"operator": map[string]any{
				"type":        "string",
				"description": "Comparison operator, e.g. equals or greater_than",
			},
			"value": map[string]any{
				"description": "Literal to compare against",
			},
		},
		"required": []string{"field", "operator"},
		"examples": []map[string]any{
			{"field": "order.total", "operator": "greater_than", "value": 100},
			{"field": "user.email", "operator": "is_not_null"},
		},
	}
}
