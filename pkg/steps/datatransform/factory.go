package datatransform

import (
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/transform"
)

// DataTransformFactory creates DataTransform handlers.
type DataTransformFactory struct{}

func NewDataTransformFactory() protocol.StepFactory {
	return &DataTransformFactory{}
}

func (f *DataTransformFactory) Create(step *models.WorkflowStep) (protocol.StepHandler, error) {
	return NewDataTransform(step)
}

func (f *DataTransformFactory) ID() string {
	return string(models.StepTypeDataTransform)
}

func (f *DataTransformFactory) Name() string {
	return "Data Transform"
}

func (f *DataTransformFactory) Description() string {
	return "Applies a named transformation to the execution variables and merges the result back"
}

func (f *DataTransformFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"transform_type": map[string]any{
				"type":        "string",
				"description": "Name of the transformer to apply",
				"enum":        transform.Names(),
			},
			"config": map[string]any{
				"type":        "object",
				"description": "Transformer-specific configuration",
			},
		},
		"required": []string{"transform_type"},
		"examples": []map[string]any{
			{
				"transform_type": "map_fields",
				"config":         map[string]any{"mappings": map[string]any{"customer_name": "user.name"}},
			},
			{
				"transform_type": "aggregate",
				"config": map[string]any{
					"operations": []map[string]any{{"field": "scores", "op": "avg"}},
				},
			},
		},
	}
}
