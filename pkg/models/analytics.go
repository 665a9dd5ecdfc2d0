package models

import "time"

// IntegrationUsage aggregates how one integration performed across the
// executions of a workflow.
type IntegrationUsage struct {
	IntegrationID string `json:"integration_id"`
	Invocations   int64  `json:"invocations"`
	Successes     int64  `json:"successes"`
	Failures      int64  `json:"failures"`
}

// SuccessRate returns the fraction of invocations that succeeded.
func (u *IntegrationUsage) SuccessRate() float64 {
	if u.Invocations == 0 {
		return 1.0
	}

	return float64(u.Successes) / float64(u.Invocations)
}

// FailurePoint accumulates failures observed at one step across executions.
type FailurePoint struct {
	StepID     string    `json:"step_id"`
	StepName   string    `json:"step_name,omitempty"`
	ErrorCount int64     `json:"error_count"`
	LastError  string    `json:"last_error,omitempty"`
	LastSeen   time.Time `json:"last_seen"`
}

// WorkflowAnalytics is the rolling aggregate for one workflow, keyed 1:1
// with the workflow it describes. Means update incrementally so no
// per-execution history is retained.
type WorkflowAnalytics struct {
	WorkflowID           string                       `json:"workflow_id"`
	TotalExecutions      int64                        `json:"total_executions"`
	SuccessfulExecutions int64                        `json:"successful_executions"`
	FailedExecutions     int64                        `json:"failed_executions"`
	AvgExecutionTimeMs   float64                      `json:"avg_execution_time_ms"`
	Integrations         map[string]*IntegrationUsage `json:"integrations"`
	FailurePoints        map[string]*FailurePoint     `json:"failure_points"`
	Recommendations      []string                     `json:"recommendations,omitempty"`
	LastUpdated          time.Time                    `json:"last_updated"`
}

// NewWorkflowAnalytics returns a zeroed aggregate for a workflow.
func NewWorkflowAnalytics(workflowID string) *WorkflowAnalytics {
	return &WorkflowAnalytics{
		WorkflowID:    workflowID,
		Integrations:  make(map[string]*IntegrationUsage),
		FailurePoints: make(map[string]*FailurePoint),
	}
}

// SuccessRate returns the fraction of executions that completed.
func (a *WorkflowAnalytics) SuccessRate() float64 {
	if a.TotalExecutions == 0 {
		return 1.0
	}

	return float64(a.SuccessfulExecutions) / float64(a.TotalExecutions)
}
