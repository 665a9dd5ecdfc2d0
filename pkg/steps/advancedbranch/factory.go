package advancedbranch

import (
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// AdvancedBranchFactory creates AdvancedBranch handlers bound to the
// engine's AI provider for ai condition kinds.
type AdvancedBranchFactory struct {
	provider protocol.AIProvider
}

func NewAdvancedBranchFactory(provider protocol.AIProvider) protocol.StepFactory {
	return &AdvancedBranchFactory{provider: provider}
}

func (f *AdvancedBranchFactory) Create(step *models.WorkflowStep) (protocol.StepHandler, error) {
	return NewAdvancedBranch(step, f.provider)
}

func (f *AdvancedBranchFactory) ID() string {
	return string(models.StepTypeAdvancedBranch)
}

func (f *AdvancedBranchFactory) Name() string {
	return "Advanced Branch"
}

func (f *AdvancedBranchFactory) Description() string {
	return "Selects one of several named branches by field comparison, expression or AI decision"
}

// Schema is empty on purpose. Branch configuration lives in the step's
// structured branch block, not in its parameters.
func (f *AdvancedBranchFactory) Schema() map[string]any {
	return map[string]any{
		"type":        "object",
		"description": "Advanced branch steps take no parameters; the step's branch block carries the configuration",
	}
}
