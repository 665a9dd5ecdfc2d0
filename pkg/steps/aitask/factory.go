package aitask

import (
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// AITaskFactory creates AITask handlers bound to the engine's AI provider.
type AITaskFactory struct {
	provider protocol.AIProvider
}

func NewAITaskFactory(provider protocol.AIProvider) protocol.StepFactory {
	return &AITaskFactory{provider: provider}
}

func (f *AITaskFactory) Create(step *models.WorkflowStep) (protocol.StepHandler, error) {
	return NewAITask(step, f.provider)
}

func (f *AITaskFactory) ID() string {
	return string(models.StepTypeAITask)
}

func (f *AITaskFactory) Name() string {
	return "AI Task"
}

func (f *AITaskFactory) Description() string {
	return "Builds a prompt from the task type and execution context and dispatches it to the AI provider"
}

// Schema is empty on purpose. AI task configuration lives in the step's
// structured AI block, not in its parameters.
func (f *AITaskFactory) Schema() map[string]any {
	return map[string]any{
		"type":        "object",
		"description": "AI tasks take no parameters; the step's ai block carries the configuration",
	}
}
