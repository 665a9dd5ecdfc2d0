package parallel

import (
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// ParallelFactory creates Parallel handlers bound to the engine's step
// runner.
type ParallelFactory struct {
	runner protocol.StepRunner
}

func NewParallelFactory(runner protocol.StepRunner) protocol.StepFactory {
	return &ParallelFactory{runner: runner}
}

func (f *ParallelFactory) Create(step *models.WorkflowStep) (protocol.StepHandler, error) {
	return NewParallel(step, f.runner)
}

func (f *ParallelFactory) ID() string {
	return string(models.StepTypeParallel)
}

func (f *ParallelFactory) Name() string {
	return "Parallel"
}

func (f *ParallelFactory) Description() string {
	return "Runs nested steps concurrently and collects their results in declaration order"
}

// Schema is empty on purpose. Parallel configuration lives in the step's
// nested steps list, not in its parameters.
func (f *ParallelFactory) Schema() map[string]any {
	return map[string]any{
		"type":        "object",
		"description": "Parallel steps take no parameters; nested steps carry the work",
	}
}
