// Package web provides the HTTP surface over the workflow execution
// engine: registration, execution control and the read accessors.
package web

import "github.com/weftlabs/weft/pkg/models"

// ExecuteWorkflowRequest is the request body for starting an execution.
type ExecuteWorkflowRequest struct {
	TriggeredBy string         `json:"triggered_by" validate:"required"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// ExecuteWorkflowResponse returns the id of the queued execution. The call
// never waits for the execution to finish.
type ExecuteWorkflowResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

// UpdateIntegrationStateRequest is a partial state update; only set fields
// are applied.
type UpdateIntegrationStateRequest struct {
	Status             *string  `json:"status,omitempty"     validate:"omitempty,oneof=connected disconnected error"`
	Available          *bool    `json:"available,omitempty"`
	AvgResponseTimeMs  *float64 `json:"avg_response_time_ms,omitempty" validate:"omitempty,gte=0"`
	RateLimitRemaining *int     `json:"rate_limit_remaining,omitempty" validate:"omitempty,gte=0"`
	LastError          *string  `json:"last_error,omitempty"`
}

// ResolveRouteRequest asks for the best route between two integrations for
// a concrete payload.
type ResolveRouteRequest struct {
	From string         `json:"from" validate:"required"`
	To   string         `json:"to"   validate:"required"`
	Data map[string]any `json:"data,omitempty"`
}

// ResolveRouteResponse carries the selected route, or found=false when no
// enabled route matches.
type ResolveRouteResponse struct {
	Found bool                     `json:"found"`
	Route *models.IntegrationRoute `json:"route,omitempty"`
}

// AnalyticsResponse wraps the workflow aggregate with its derived success
// rate so clients need not recompute it.
type AnalyticsResponse struct {
	*models.WorkflowAnalytics

	SuccessRate float64 `json:"success_rate"`
}
