// Package protocol defines the contracts between the engine and its
// pluggable parts: step handlers, triggers, the integration dispatch
// surface, and AI completion.
package protocol

import (
	"context"
	"log/slog"

	"github.com/weftlabs/weft/pkg/models"
)

// StepHandler executes one workflow step. The returned value becomes the
// step result; map results are shallow-merged into the execution variables,
// anything else lands under the step id.
type StepHandler interface {
	Execute(ctx context.Context, execCtx models.ExecutionContext, logger *slog.Logger) (any, error)
}

// StepFactory creates handler instances for one step type. Create receives
// the whole step because several types carry structured configuration
// beyond Parameters (branch conditions, AI settings, nested steps).
type StepFactory interface {
	Create(step *models.WorkflowStep) (StepHandler, error)

	// ID returns the step type this factory builds, e.g. "data_transform".
	ID() string

	// Name returns the human-readable name for this step type.
	Name() string

	// Description returns a description of what this step type does.
	Description() string

	// Schema returns the JSON schema for this step type's Parameters.
	Schema() map[string]any
}

// StepRunner runs a single step through the engine's full per-step
// machinery (condition gate, retries, timeout). Composite handlers such as
// parallel use it to execute their children.
type StepRunner interface {
	RunStep(ctx context.Context, step *models.WorkflowStep, execCtx models.ExecutionContext) (any, error)
}
