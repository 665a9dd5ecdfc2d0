// Package schedule provides the cron trigger that starts workflow
// executions on a schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/weftlabs/weft/pkg/protocol"
)

// ErrNoCronExpression is returned when the trigger configuration carries
// no cron expression.
var ErrNoCronExpression = errors.New("schedule trigger has no cron expression")

// Trigger fires its callback on a cron schedule. Overlapping runs are
// skipped rather than stacked.
type Trigger struct {
	CronExpr string
	Enabled  bool

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

// NewTrigger builds a schedule trigger from its configuration map. The
// cron expression is validated up front.
func NewTrigger(config map[string]any, logger *slog.Logger) (*Trigger, error) {
	cronExpr, _ := config["cron"].(string)

	enabled := true
	if v, ok := config["enabled"].(bool); ok {
		enabled = v
	}

	trigger := &Trigger{
		CronExpr: cronExpr,
		Enabled:  enabled,
		logger: logger.With(
			"module", "schedule_trigger",
			"cron", cronExpr,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.CronExpr == "" {
		return ErrNoCronExpression
	}

	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !t.Enabled {
		t.logger.InfoContext(ctx, "Schedule trigger is disabled")

		return nil
	}

	t.logger.InfoContext(ctx, "Starting schedule trigger")
	t.callback = callback

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := t.cron.AddFunc(t.CronExpr, func() { t.fire(ctx) }); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	t.cron.Start()

	return nil
}

func (t *Trigger) fire(ctx context.Context) {
	triggerData := map[string]any{
		"schedule":  t.CronExpr,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := t.callback(ctx, triggerData); err != nil {
		t.logger.ErrorContext(ctx, "Error executing workflow for trigger", "error", err)
	}
}

// Stop halts the scheduler and waits for a running job to finish, bounded
// by the context.
func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping schedule trigger")

	if t.cron == nil {
		return nil
	}

	select {
	case <-t.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
