// Package integrationaction provides the step handler that dispatches
// workflow actions through the integration registry.
package integrationaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

var (
	// ErrIntegrationIDMissing is returned when the step declares no integration.
	ErrIntegrationIDMissing = errors.New("integration_action step has no integration id")
	// ErrActionMissing is returned when the step declares no action.
	ErrActionMissing = errors.New("integration_action step has no action")
	// ErrNoDispatcher is returned when no integration dispatcher was wired in.
	ErrNoDispatcher = errors.New("no integration dispatcher configured")
)

// IntegrationAction dispatches one action against one integration. The
// dispatcher enforces availability and rate-limit gates and keeps the
// integration's usage bookkeeping; this handler only forwards and reports.
type IntegrationAction struct {
	stepID        string
	integrationID string
	action        string
	params        map[string]any
	integrations  protocol.IntegrationAdapter
}

// NewIntegrationAction creates the handler from a workflow step.
func NewIntegrationAction(step *models.WorkflowStep, integrations protocol.IntegrationAdapter) (*IntegrationAction, error) {
	if step.IntegrationID == "" {
		return nil, ErrIntegrationIDMissing
	}

	if step.Action == "" {
		return nil, ErrActionMissing
	}

	return &IntegrationAction{
		stepID:        step.ID,
		integrationID: step.IntegrationID,
		action:        step.Action,
		params:        step.Parameters,
		integrations:  integrations,
	}, nil
}

// Execute forwards the action to the dispatcher and returns its result as
// the step output.
func (a *IntegrationAction) Execute(ctx context.Context, _ models.ExecutionContext, logger *slog.Logger) (any, error) {
	logger = logger.With(
		"module", "integration_action_step",
		"integration_id", a.integrationID,
		"action", a.action,
	)

	if a.integrations == nil {
		return nil, ErrNoDispatcher
	}

	logger.InfoContext(ctx, "Dispatching integration action")

	result, err := a.integrations.Execute(ctx, a.integrationID, a.action, a.params)
	if err != nil {
		logger.ErrorContext(ctx, "Integration action failed", "error", err)

		return nil, fmt.Errorf("integration action failed: %w", err)
	}

	logger.InfoContext(ctx, "Integration action completed")

	return result, nil
}
