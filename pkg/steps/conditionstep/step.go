// Package conditionstep provides the step handler that evaluates a field
// comparison against the execution variables. The boolean lands in the
// variable bag for downstream steps; it never alters control flow itself.
package conditionstep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/weftlabs/weft/pkg/condition"
	"github.com/weftlabs/weft/pkg/models"
)

var (
	// ErrFieldMissing is returned when the step names no field to compare.
	ErrFieldMissing = errors.New("missing required parameter 'field'")
	// ErrOperatorMissing is returned when the step names no operator.
	ErrOperatorMissing = errors.New("missing required parameter 'operator'")
)

// ConditionStep evaluates one condition descriptor.
type ConditionStep struct {
	stepID string
	cond   models.StepCondition
}

// NewConditionStep creates the handler from a workflow step.
func NewConditionStep(step *models.WorkflowStep) (*ConditionStep, error) {
	field, ok := step.Parameters["field"].(string)
	if !ok || field == "" {
		return nil, ErrFieldMissing
	}

	operator, ok := step.Parameters["operator"].(string)
	if !ok || operator == "" {
		return nil, ErrOperatorMissing
	}

	return &ConditionStep{
		stepID: step.ID,
		cond: models.StepCondition{
			Field:    field,
			Operator: operator,
			Value:    step.Parameters["value"],
		},
	}, nil
}

func (a *ConditionStep) Execute(ctx context.Context, execCtx models.ExecutionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "condition_step")

	result := condition.Evaluate(&a.cond, execCtx.Variables)

	logger.InfoContext(ctx, "Condition evaluated",
		"field", a.cond.Field,
		"operator", a.cond.Operator,
		"result", result)

	return map[string]any{
		"result":       result,
		"evaluated_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}
