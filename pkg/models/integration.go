// Package models defines the core domain models for multi-integration workflow execution.
package models

import "time"

// ConnectionStatus represents the connectivity state of an integration.
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusError        ConnectionStatus = "error"
)

// RateLimit is the permitted call volume for an integration. A zero field
// means the registry default applies for that window.
type RateLimit struct {
	RequestsPerSecond int `json:"requests_per_second,omitempty"`
	RequestsPerHour   int `json:"requests_per_hour,omitempty"`
}

// IntegrationCapability describes an external service integration and the
// actions it can perform on behalf of workflow steps. Immutable after
// registration except via explicit re-registration.
type IntegrationCapability struct {
	ID           string    `json:"id"       validate:"required"`
	Name         string    `json:"name"     validate:"required"`
	Category     string    `json:"category,omitempty"`
	Actions      []string  `json:"actions"`
	Triggers     []string  `json:"triggers,omitempty"`
	RateLimit    RateLimit `json:"rate_limit"`
	AuthKind     string    `json:"auth_kind,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// IntegrationState tracks the runtime condition of a registered integration.
// It is keyed 1:1 with the capability it belongs to. Locking lives in the
// registry record, not here, so the state stays serializable.
type IntegrationState struct {
	IntegrationID      string           `json:"integration_id"`
	Status             ConnectionStatus `json:"status"`
	Available          bool             `json:"available"`
	LastUsedAt         time.Time        `json:"last_used_at"`
	LastHealthCheck    time.Time        `json:"last_health_check"`
	UsageCount         int64            `json:"usage_count"`
	SuccessCount       int64            `json:"success_count"`
	ErrorCount         int64            `json:"error_count"`
	AvgResponseTimeMs  float64          `json:"avg_response_time_ms"`
	RateLimitRemaining int              `json:"rate_limit_remaining"`
	RateLimitResetAt   time.Time        `json:"rate_limit_reset_at"`
	LastError          string           `json:"last_error,omitempty"`
}

// Connected reports whether the integration currently has a live connection.
func (s *IntegrationState) Connected() bool {
	return s.Status == ConnectionStatusConnected
}

// SuccessRate returns the fraction of completed calls that succeeded.
// An integration with no calls yet reports 1.0 so it is not penalized
// before first use.
func (s *IntegrationState) SuccessRate() float64 {
	total := s.SuccessCount + s.ErrorCount
	if total == 0 {
		return 1.0
	}

	return float64(s.SuccessCount) / float64(total)
}

// ErrorRate returns the fraction of completed calls that failed.
func (s *IntegrationState) ErrorRate() float64 {
	return 1.0 - s.SuccessRate()
}

// IntegrationHealth is the externally visible health snapshot of one
// integration, as reported by the health monitor.
type IntegrationHealth struct {
	IntegrationID      string           `json:"integration_id"`
	Available          bool             `json:"available"`
	Status             ConnectionStatus `json:"status"`
	SuccessRate        float64          `json:"success_rate"`
	AvgResponseTimeMs  float64          `json:"avg_response_time_ms"`
	UsageCount         int64            `json:"usage_count"`
	ErrorCount         int64            `json:"error_count"`
	RateLimitRemaining int              `json:"rate_limit_remaining"`
	RateLimitResetAt   time.Time        `json:"rate_limit_reset_at"`
	LastHealthCheck    time.Time        `json:"last_health_check"`
	LastError          string           `json:"last_error,omitempty"`
}
