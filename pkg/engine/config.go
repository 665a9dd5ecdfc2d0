package engine

import "log/slog"

// Engine defaults applied to zero-valued Config fields.
const (
	DefaultMaxConcurrentExecutions    = 10
	DefaultMaxStepsPerWorkflow        = 100
	DefaultStepTimeoutMs              = 300_000
	DefaultRetryAttempts              = 3
	DefaultRetryDelayMs               = 1000
	DefaultRetryBackoffMultiplier     = 2.0
	DefaultHealthCheckIntervalMs      = 60_000
	DefaultIntegrationHealthThreshold = 0.8
)

// Config tunes the engine at construction time. DefaultConfig returns the
// production defaults; a hand-built Config keeps its explicit toggles and
// only zero-valued numerics fall back.
type Config struct {
	MaxConcurrentExecutions    int        `json:"max_concurrent_executions"`
	MaxStepsPerWorkflow        int        `json:"max_steps_per_workflow"`
	DefaultTimeoutMs           int64      `json:"default_timeout_ms"` // Per-step timeout when the step sets none
	DefaultRetryAttempts       int        `json:"default_retry_attempts"`
	HealthCheckIntervalMs      int64      `json:"health_check_interval_ms"`
	IntegrationHealthThreshold float64    `json:"integration_health_threshold"`
	EnableCaching              bool       `json:"enable_caching"`
	EnableMetrics              bool       `json:"enable_metrics"`
	AutoRetryFailures          bool       `json:"auto_retry_failures"`
	LogLevel                   slog.Level `json:"log_level"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentExecutions:    DefaultMaxConcurrentExecutions,
		MaxStepsPerWorkflow:        DefaultMaxStepsPerWorkflow,
		DefaultTimeoutMs:           DefaultStepTimeoutMs,
		DefaultRetryAttempts:       DefaultRetryAttempts,
		HealthCheckIntervalMs:      DefaultHealthCheckIntervalMs,
		IntegrationHealthThreshold: DefaultIntegrationHealthThreshold,
		EnableCaching:              true,
		EnableMetrics:              true,
		AutoRetryFailures:          true,
		LogLevel:                   slog.LevelInfo,
	}
}

// withDefaults fills zero-valued numeric fields. Boolean toggles keep
// whatever the caller set.
func (c Config) withDefaults() Config {
	if c.MaxConcurrentExecutions <= 0 {
		c.MaxConcurrentExecutions = DefaultMaxConcurrentExecutions
	}

	if c.MaxStepsPerWorkflow <= 0 {
		c.MaxStepsPerWorkflow = DefaultMaxStepsPerWorkflow
	}

	if c.DefaultTimeoutMs <= 0 {
		c.DefaultTimeoutMs = DefaultStepTimeoutMs
	}

	if c.DefaultRetryAttempts <= 0 {
		c.DefaultRetryAttempts = DefaultRetryAttempts
	}

	if c.HealthCheckIntervalMs <= 0 {
		c.HealthCheckIntervalMs = DefaultHealthCheckIntervalMs
	}

	if c.IntegrationHealthThreshold <= 0 {
		c.IntegrationHealthThreshold = DefaultIntegrationHealthThreshold
	}

	return c
}
