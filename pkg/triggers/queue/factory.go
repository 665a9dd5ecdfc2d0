package queue

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/weftlabs/weft/pkg/protocol"
)

// ErrConfigNil is returned when the factory receives no configuration.
var ErrConfigNil = errors.New("config cannot be nil")

// NewQueueFactory returns the factory for queue triggers.
func NewQueueFactory() protocol.TriggerFactory {
	return &Factory{}
}

type Factory struct{}

func (f *Factory) ID() string {
	return "queue"
}

func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	if config == nil {
		return nil, ErrConfigNil
	}

	trigger, err := NewTrigger(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue trigger: %w", err)
	}

	return trigger, nil
}
