package models

import "time"

// IntegrationRoute declares a preferred path for moving data from one
// integration to another. Routes for the same pair are ranked by priority,
// higher first; conditions must all match for a route to apply.
type IntegrationRoute struct {
	ID              string            `json:"id"`
	FromIntegration string            `json:"from_integration" validate:"required"`
	ToIntegration   string            `json:"to_integration" validate:"required"`
	Priority        int               `json:"priority"`
	Conditions      []*StepCondition  `json:"conditions,omitempty" validate:"omitempty,dive"`
	FieldMap        map[string]string `json:"field_map,omitempty"` // Target field -> source field path
	Enabled         bool              `json:"enabled"`
	RegisteredAt    time.Time         `json:"registered_at"`
}

// Key returns the registry key for the route's integration pair.
func (r *IntegrationRoute) Key() string {
	return RouteKey(r.FromIntegration, r.ToIntegration)
}

// RouteKey builds the registry key for an integration pair.
func RouteKey(from, to string) string {
	return from + "->" + to
}
