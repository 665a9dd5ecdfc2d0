package protocol

import (
	"context"
	"log/slog"
)

// TriggerCallback receives the trigger payload for one workflow activation.
type TriggerCallback func(ctx context.Context, data map[string]any) error

// Trigger is a long-running activation source bound to one workflow
// trigger definition.
type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate() error
}

// TriggerFactory creates triggers of one type from a trigger configuration.
type TriggerFactory interface {
	Create(config map[string]any, logger *slog.Logger) (Trigger, error)
	ID() string
}
