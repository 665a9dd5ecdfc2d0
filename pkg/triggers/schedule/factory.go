package schedule

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/weftlabs/weft/pkg/protocol"
)

// ErrConfigNil is returned when the factory receives no configuration.
var ErrConfigNil = errors.New("config cannot be nil")

// NewScheduleFactory returns the factory for schedule triggers.
func NewScheduleFactory() protocol.TriggerFactory {
	return &Factory{}
}

type Factory struct{}

func (f *Factory) ID() string {
	return "schedule"
}

func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	if config == nil {
		return nil, ErrConfigNil
	}

	trigger, err := NewTrigger(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule trigger: %w", err)
	}

	return trigger, nil
}
