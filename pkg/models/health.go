package models

import "time"

// SystemHealth is a point-in-time snapshot of the whole engine.
type SystemHealth struct {
	Status              string                        `json:"status"` // healthy or degraded
	ActiveExecutions    int                           `json:"active_executions"`
	QueuedExecutions    int                           `json:"queued_executions"`
	RegisteredWorkflows int                           `json:"registered_workflows"`
	Integrations        map[string]*IntegrationHealth `json:"integrations"`
	CheckedAt           time.Time                     `json:"checked_at"`
}

// Healthy reports whether every registered integration is available.
func (h *SystemHealth) Healthy() bool {
	for _, integration := range h.Integrations {
		if !integration.Available {
			return false
		}
	}

	return true
}
