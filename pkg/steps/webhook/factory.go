package webhook

import (
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

type WebhookFactory struct{}

func NewWebhookFactory() protocol.StepFactory {
	return &WebhookFactory{}
}

func (f *WebhookFactory) Create(step *models.WorkflowStep) (protocol.StepHandler, error) {
	return NewWebhook(step)
}

func (f *WebhookFactory) ID() string {
	return string(models.StepTypeWebhook)
}

func (f *WebhookFactory) Name() string {
	return "Webhook"
}

func (f *WebhookFactory) Description() string {
	return "Records an outbound webhook intent for the surrounding system to deliver"
}

func (f *WebhookFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Target URL for the webhook",
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method, defaults to POST",
			},
			"payload": map[string]any{
				"description": "Payload to deliver",
			},
		},
		"required": []string{"url"},
	}
}
