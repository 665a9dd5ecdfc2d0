package wait

import (
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// WaitFactory creates Wait handlers.
type WaitFactory struct{}

func NewWaitFactory() protocol.StepFactory {
	return &WaitFactory{}
}

func (f *WaitFactory) Create(step *models.WorkflowStep) (protocol.StepHandler, error) {
	return NewWait(step)
}

func (f *WaitFactory) ID() string {
	return string(models.StepTypeWait)
}

func (f *WaitFactory) Name() string {
	return "Wait"
}

func (f *WaitFactory) Description() string {
	return "Suspends the execution for a fixed duration without blocking other executions"
}

func (f *WaitFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration_ms": map[string]any{
				"type":        "number",
				"description": "How long to wait, in milliseconds",
				"minimum":     1,
			},
		},
		"required": []string{"duration_ms"},
		"examples": []map[string]any{
			{"duration_ms": 5000},
		},
	}
}
