package cmd

import (
	"log/slog"

	"github.com/weftlabs/weft/pkg/registry"
	"github.com/weftlabs/weft/pkg/triggers/queue"
	"github.com/weftlabs/weft/pkg/triggers/schedule"
)

// NewRegistry creates the factory catalog with the built-in triggers
// registered. Step factories are registered by the caller once the engine
// exists, because composite steps run their children through it.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterTrigger(schedule.NewScheduleFactory())
	reg.RegisterTrigger(queue.NewQueueFactory())

	return reg
}
