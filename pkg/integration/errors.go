package integration

import (
	"errors"
	"fmt"
)

// Sentinel errors for integration lookup and dispatch, matched with
// errors.Is.
var (
	// ErrIntegrationNotFound indicates an operation referenced an
	// integration id that is not registered.
	ErrIntegrationNotFound = errors.New("integration not found")

	// ErrIntegrationUnavailable indicates the integration is disabled or
	// currently marked unavailable by the health monitor.
	ErrIntegrationUnavailable = errors.New("integration unavailable")

	// ErrRateLimited indicates the integration's rate-limit budget for the
	// current window is exhausted.
	ErrRateLimited = errors.New("integration rate limit exceeded")
)

// DispatchError wraps a failure to dispatch an action to an integration.
type DispatchError struct {
	IntegrationID string
	Action        string
	Err           error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s.%s: %v", e.IntegrationID, e.Action, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewDispatchError creates a DispatchError for the given integration action.
func NewDispatchError(integrationID, action string, err error) *DispatchError {
	return &DispatchError{IntegrationID: integrationID, Action: action, Err: err}
}

// IsNotFound reports whether err indicates an unknown integration.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrIntegrationNotFound)
}

// IsUnavailable reports whether err indicates the integration cannot accept
// dispatches right now, either unhealthy or out of rate-limit budget.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrIntegrationUnavailable) || errors.Is(err, ErrRateLimited)
}
