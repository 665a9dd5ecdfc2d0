package notification

import (
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

type NotificationFactory struct{}

func NewNotificationFactory() protocol.StepFactory {
	return &NotificationFactory{}
}

func (f *NotificationFactory) Create(step *models.WorkflowStep) (protocol.StepHandler, error) {
	return NewNotification(step)
}

func (f *NotificationFactory) ID() string {
	return string(models.StepTypeNotification)
}

func (f *NotificationFactory) Name() string {
	return "Notification"
}

func (f *NotificationFactory) Description() string {
	return "Records a notification intent for the surrounding system to deliver"
}

func (f *NotificationFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"channel": map[string]any{
				"type":        "string",
				"description": "Logical channel for the notification, defaults to 'default'",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Notification text",
			},
		},
		"required": []string{"message"},
	}
}
