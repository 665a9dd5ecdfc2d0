package integrationaction

import (
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// IntegrationActionFactory creates IntegrationAction handlers bound to the
// engine's integration dispatcher.
type IntegrationActionFactory struct {
	integrations protocol.IntegrationAdapter
}

func NewIntegrationActionFactory(integrations protocol.IntegrationAdapter) protocol.StepFactory {
	return &IntegrationActionFactory{integrations: integrations}
}

func (f *IntegrationActionFactory) Create(step *models.WorkflowStep) (protocol.StepHandler, error) {
	return NewIntegrationAction(step, f.integrations)
}

func (f *IntegrationActionFactory) ID() string {
	return string(models.StepTypeIntegrationAction)
}

func (f *IntegrationActionFactory) Name() string {
	return "Integration Action"
}

func (f *IntegrationActionFactory) Description() string {
	return "Dispatches an action through a registered integration, subject to its availability and rate-limit budget"
}

// Schema describes the step parameters, which are forwarded verbatim to
// the integration. The integration id and action live on the step itself.
func (f *IntegrationActionFactory) Schema() map[string]any {
	return map[string]any{
		"type":        "object",
		"description": "Action parameters forwarded to the integration",
		"examples": []map[string]any{
			{"channel": "#alerts", "message": "deployment finished"},
			{"project": "OPS", "summary": "rotate credentials"},
		},
	}
}
