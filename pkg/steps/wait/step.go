// Package wait provides the step handler that suspends one execution for
// a configured duration.
package wait

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/weftlabs/weft/pkg/models"
)

// ErrDurationMissing is returned when the step declares no positive duration.
var ErrDurationMissing = errors.New("missing required parameter 'duration_ms'")

// Wait sleeps for the configured duration. Only this execution's step
// sequence blocks; other executions run on their own goroutines.
type Wait struct {
	stepID   string
	duration time.Duration
}

// NewWait creates the handler from a workflow step.
func NewWait(step *models.WorkflowStep) (*Wait, error) {
	durationMs := durationFrom(step.Parameters["duration_ms"])
	if durationMs <= 0 {
		return nil, ErrDurationMissing
	}

	return &Wait{
		stepID:   step.ID,
		duration: time.Duration(durationMs) * time.Millisecond,
	}, nil
}

func (a *Wait) Execute(ctx context.Context, _ models.ExecutionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "wait_step")
	logger.InfoContext(ctx, "Waiting", "duration", a.duration)

	timer := time.NewTimer(a.duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return map[string]any{
		"waited_ms":    a.duration.Milliseconds(),
		"completed_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func durationFrom(value any) int64 {
	switch v := value.(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
