// Package notification provides the step handler that records a
// notification intent for dashboards and chat surfaces to act on.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/weftlabs/weft/pkg/models"
)

// ErrMessageMissing is returned when the step declares no message.
var ErrMessageMissing = errors.New("missing required parameter 'message'")

const defaultChannel = "default"

type Notification struct {
	stepID  string
	channel string
	message string
}

func NewNotification(step *models.WorkflowStep) (*Notification, error) {
	message, ok := step.Parameters["message"].(string)
	if !ok || message == "" {
		return nil, ErrMessageMissing
	}

	channel, _ := step.Parameters["channel"].(string)
	if channel == "" {
		channel = defaultChannel
	}

	return &Notification{
		stepID:  step.ID,
		channel: channel,
		message: message,
	}, nil
}

func (a *Notification) Execute(ctx context.Context, _ models.ExecutionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "notification_step")
	logger.InfoContext(ctx, "Notification intent emitted", "channel", a.channel)

	return map[string]any{
		"intent":     "notification",
		"channel":    a.channel,
		"message":    a.message,
		"emitted_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}
