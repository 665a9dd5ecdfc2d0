// Package parallel provides the step handler that fans nested sub-steps
// out concurrently and collects their results.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

var (
	// ErrNoNestedSteps is returned when the step declares no children.
	ErrNoNestedSteps = errors.New("parallel step has no nested steps")
	// ErrNoRunner is returned when no step runner was wired in.
	ErrNoRunner = errors.New("no step runner configured")
)

// Parallel runs its nested steps concurrently through the engine's step
// runner so every child gets the full condition, retry and timeout
// treatment. All children are awaited; the first error fails the step.
type Parallel struct {
	stepID string
	steps  []*models.WorkflowStep
	runner protocol.StepRunner
}

// NewParallel creates the handler from a workflow step.
func NewParallel(step *models.WorkflowStep, runner protocol.StepRunner) (*Parallel, error) {
	if len(step.Steps) == 0 {
		return nil, ErrNoNestedSteps
	}

	return &Parallel{
		stepID: step.ID,
		steps:  step.Steps,
		runner: runner,
	}, nil
}

// Execute fans out the children and returns their results in declaration
// order.
func (a *Parallel) Execute(ctx context.Context, execCtx models.ExecutionContext, logger *slog.Logger) (any, error) {
	logger = logger.With(
		"module", "parallel_step",
		"sub_steps", len(a.steps),
	)

	if a.runner == nil {
		return nil, ErrNoRunner
	}

	logger.InfoContext(ctx, "Starting parallel sub-steps")

	results := make([]any, len(a.steps))

	var group errgroup.Group

	for i, child := range a.steps {
		group.Go(func() error {
			result, err := a.runner.RunStep(ctx, child, execCtx)
			if err != nil {
				return fmt.Errorf("sub-step %s failed: %w", child.ID, err)
			}

			results[i] = result

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logger.ErrorContext(ctx, "Parallel step failed", "error", err)

		return nil, err
	}

	logger.InfoContext(ctx, "Parallel sub-steps completed")

	return results, nil
}
