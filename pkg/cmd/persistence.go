// Package cmd provides common initialization for the command-line
// binaries: event bus, persistence and step catalog wiring.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weftlabs/weft/pkg/persistence"
	"github.com/weftlabs/weft/pkg/persistence/memory"
	"github.com/weftlabs/weft/pkg/persistence/postgres"
)

// NewPersistence builds the store from a database URL. "memory://" (or an
// empty URL) keeps everything in process, which the engine treats as the
// baseline deployment; "postgres://" adds durability for definitions,
// routes, executions and analytics.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case databaseURL == "" || strings.HasPrefix(databaseURL, "memory://"):
		return memory.NewPersistence()
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgres.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgres persistence: %w", err))
		}

		return store
	default:
		panic("Unsupported persistence provider in database URL: " + databaseURL)
	}
}
