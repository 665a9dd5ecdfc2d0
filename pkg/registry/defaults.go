package registry

import (
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/steps/advancedbranch"
	"github.com/weftlabs/weft/pkg/steps/aitask"
	"github.com/weftlabs/weft/pkg/steps/conditionstep"
	"github.com/weftlabs/weft/pkg/steps/datatransform"
	"github.com/weftlabs/weft/pkg/steps/integrationaction"
	"github.com/weftlabs/weft/pkg/steps/notification"
	"github.com/weftlabs/weft/pkg/steps/parallel"
	"github.com/weftlabs/weft/pkg/steps/wait"
	"github.com/weftlabs/weft/pkg/steps/webhook"
)

// Dependencies carries the collaborators the built-in step handlers share.
// Runner must be the engine itself so composite steps execute their
// children through the full per-step machinery.
type Dependencies struct {
	Integrations protocol.IntegrationAdapter
	AI           protocol.AIProvider
	Runner       protocol.StepRunner
}

// RegisterDefaultSteps registers every built-in step factory.
func (r *Registry) RegisterDefaultSteps(deps Dependencies) {
	r.RegisterStep(integrationaction.NewIntegrationActionFactory(deps.Integrations))
	r.RegisterStep(datatransform.NewDataTransformFactory())
	r.RegisterStep(conditionstep.NewConditionStepFactory())
	r.RegisterStep(parallel.NewParallelFactory(deps.Runner))
	r.RegisterStep(wait.NewWaitFactory())
	r.RegisterStep(webhook.NewWebhookFactory())
	r.RegisterStep(notification.NewNotificationFactory())
	r.RegisterStep(aitask.NewAITaskFactory(deps.AI))
	r.RegisterStep(advancedbranch.NewAdvancedBranchFactory(deps.AI))
}
