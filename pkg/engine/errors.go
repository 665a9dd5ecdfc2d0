package engine

import (
	"errors"

	"github.com/weftlabs/weft/pkg/integration"
	"github.com/weftlabs/weft/pkg/persistence"
)

// Admission and lookup errors surfaced by the engine facade.
var (
	ErrWorkflowNotFound       = errors.New("workflow not found")
	ErrWorkflowDisabled       = errors.New("workflow is disabled")
	ErrIntegrationUnavailable = errors.New("integration unavailable")
	ErrExecutionNotFound      = errors.New("execution not found")
	ErrExecutionFinished      = errors.New("execution already finished")
	ErrExecutionNotPaused     = errors.New("execution is not paused")
	ErrEngineStopped          = errors.New("engine is stopped")
)

// IsNotFound reports whether err means a missing workflow, execution or
// integration. The API layer maps these to 404 responses.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		integration.IsNotFound(err) ||
		persistence.IsWorkflowNotFound(err) ||
		persistence.IsExecutionNotFound(err) ||
		persistence.IsAnalyticsNotFound(err)
}

// IsUnavailable reports whether err means an integration gate refused the
// request, either at admission or during dispatch.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrIntegrationUnavailable) || integration.IsUnavailable(err)
}
