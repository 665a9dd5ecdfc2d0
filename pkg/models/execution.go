package models

import "time"

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"   // Queued, not yet admitted
	ExecutionStatusRunning   ExecutionStatus = "running"   // Steps in flight
	ExecutionStatusPaused    ExecutionStatus = "paused"    // Parked between steps until resumed
	ExecutionStatusRetrying  ExecutionStatus = "retrying"  // Re-queued after failure
	ExecutionStatusCompleted ExecutionStatus = "completed" // Terminal
	ExecutionStatusFailed    ExecutionStatus = "failed"    // Terminal
	ExecutionStatusCancelled ExecutionStatus = "cancelled" // Terminal
)

// StepStatus represents the lifecycle state of a single step inside an
// execution.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusRetrying  StepStatus = "retrying"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepExecution records the outcome of one step within an execution.
type StepExecution struct {
	StepID     string     `json:"step_id"`
	Status     StepStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

// WorkflowExecution is one run of a workflow. StepExecutions is keyed by
// step id and holds exactly one record per top-level step. Once the status
// is terminal the record is read-only.
type WorkflowExecution struct {
	ID             string                    `json:"id"`
	WorkflowID     string                    `json:"workflow_id"`
	Status         ExecutionStatus           `json:"status"`
	TriggerData    map[string]any            `json:"trigger_data,omitempty"`
	Variables      map[string]any            `json:"variables,omitempty"`
	StepExecutions map[string]*StepExecution `json:"step_executions"`
	Error          string                    `json:"error,omitempty"`
	RetryCount     int                       `json:"retry_count"`
	QueuedAt       time.Time                 `json:"queued_at"`
	StartedAt      *time.Time                `json:"started_at,omitempty"`
	FinishedAt     *time.Time                `json:"finished_at,omitempty"`
	Metadata       map[string]any            `json:"metadata,omitempty"`
}

// Terminal reports whether the execution reached a final state.
func (e *WorkflowExecution) Terminal() bool {
	switch e.Status {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// Duration returns the wall time between start and finish, or zero when the
// execution has not run.
func (e *WorkflowExecution) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}

	return e.FinishedAt.Sub(*e.StartedAt)
}
