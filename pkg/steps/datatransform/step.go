// Package datatransform provides the step handler that applies a named
// transformer from pkg/transform to the execution variable bag.
package datatransform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/transform"
)

// ErrTransformTypeMissing is returned when the step names no transformer.
var ErrTransformTypeMissing = errors.New("missing required parameter 'transform_type'")

// DataTransform applies one named transformer to the variable bag and
// returns the transformed document as the step output.
type DataTransform struct {
	stepID        string
	transformType string
	config        map[string]any
}

// NewDataTransform creates the handler from a workflow step.
func NewDataTransform(step *models.WorkflowStep) (*DataTransform, error) {
	transformType, ok := step.Parameters["transform_type"].(string)
	if !ok || transformType == "" {
		return nil, ErrTransformTypeMissing
	}

	config, _ := step.Parameters["config"].(map[string]any)

	return &DataTransform{
		stepID:        step.ID,
		transformType: transformType,
		config:        config,
	}, nil
}

func (a *DataTransform) Execute(ctx context.Context, execCtx models.ExecutionContext, logger *slog.Logger) (any, error) {
	logger = logger.With(
		"module", "data_transform_step",
		"transform_type", a.transformType,
	)
	logger.InfoContext(ctx, "Applying transformation")

	result, err := transform.Apply(a.transformType, execCtx.Variables, a.config)
	if err != nil {
		return nil, fmt.Errorf("transformation failed: %w", err)
	}

	return result, nil
}
