// Package events defines the event types published over the engine lifecycle.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single stream all engine events are published to.
const Topic = "weft.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Integration registry events.
	IntegrationRegisteredEvent    EventType = "integration.registered"
	IntegrationUnregisteredEvent  EventType = "integration.unregistered"
	IntegrationStateUpdatedEvent  EventType = "integration.state.updated"
	IntegrationHealthChangedEvent EventType = "integration.health.changed"

	// Definition registry events.
	WorkflowRegisteredEvent EventType = "workflow.registered"
	RouteRegisteredEvent    EventType = "route.registered"

	// Execution lifecycle events.
	ExecutionQueuedEvent    EventType = "execution.queued"
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionRetryingEvent  EventType = "execution.retrying"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"

	// Step-level events.
	StepStartedEvent   EventType = "step.started"
	StepCompletedEvent EventType = "step.completed"
	StepFailedEvent    EventType = "step.failed"

	// Handler-specific events.
	IntegrationActionCompletedEvent EventType = "integration.action.completed"
	AITaskCompletedEvent            EventType = "ai.task.completed"
	BranchEvaluatedEvent            EventType = "branch.evaluated"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]any),
	}
}

// Integration registry events

type IntegrationRegistered struct {
	BaseEvent

	IntegrationID string   `json:"integration_id"`
	Name          string   `json:"name"`
	Actions       []string `json:"actions,omitempty"`
}

func (e IntegrationRegistered) GetType() EventType {
	return IntegrationRegisteredEvent
}

type IntegrationUnregistered struct {
	BaseEvent

	IntegrationID string `json:"integration_id"`
}

func (e IntegrationUnregistered) GetType() EventType {
	return IntegrationUnregisteredEvent
}

type IntegrationStateUpdated struct {
	BaseEvent

	IntegrationID string `json:"integration_id"`
	Status        string `json:"status"`
	Available     bool   `json:"available"`
}

func (e IntegrationStateUpdated) GetType() EventType {
	return IntegrationStateUpdatedEvent
}

type IntegrationHealthChanged struct {
	BaseEvent

	IntegrationID string  `json:"integration_id"`
	Available     bool    `json:"available"`
	SuccessRate   float64 `json:"success_rate"`
	Reason        string  `json:"reason,omitempty"`
}

func (e IntegrationHealthChanged) GetType() EventType {
	return IntegrationHealthChangedEvent
}

// Definition registry events

type WorkflowRegistered struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`
	StepCount  int    `json:"step_count"`
}

func (e WorkflowRegistered) GetType() EventType {
	return WorkflowRegisteredEvent
}

type RouteRegistered struct {
	BaseEvent

	RouteID         string `json:"route_id"`
	FromIntegration string `json:"from_integration"`
	ToIntegration   string `json:"to_integration"`
	Priority        int    `json:"priority"`
}

func (e RouteRegistered) GetType() EventType {
	return RouteRegisteredEvent
}

// Execution lifecycle events

type ExecutionQueued struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	TriggerType string `json:"trigger_type,omitempty"`
}

func (e ExecutionQueued) GetType() EventType {
	return ExecutionQueuedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	WorkflowID    string `json:"workflow_id"`
	DurationMs    int64  `json:"duration_ms"`
	StepsExecuted int    `json:"steps_executed"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionRetrying struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	RetryCount  int    `json:"retry_count"`
}

func (e ExecutionRetrying) GetType() EventType {
	return ExecutionRetryingEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	Reason      string `json:"reason,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type ExecutionPaused struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

// Step-level events

type StepStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	StepID      string `json:"step_id"`
	StepType    string `json:"step_type"`
	Attempt     int    `json:"attempt"`
}

func (e StepStarted) GetType() EventType {
	return StepStartedEvent
}

type StepCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	StepID      string `json:"step_id"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	StepID      string `json:"step_id"`
	Error       string `json:"error"`
	Attempt     int    `json:"attempt"`
	WillRetry   bool   `json:"will_retry"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}

// Handler-specific events

type IntegrationActionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	IntegrationID string `json:"integration_id"`
	Action        string `json:"action"`
	DurationMs    int64  `json:"duration_ms"`
	Success       bool   `json:"success"`
}

func (e IntegrationActionCompleted) GetType() EventType {
	return IntegrationActionCompletedEvent
}

type AITaskCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	TaskType    string `json:"task_type"`
	Model       string `json:"model,omitempty"`
}

func (e AITaskCompleted) GetType() EventType {
	return AITaskCompletedEvent
}

type BranchEvaluated struct {
	BaseEvent

	ExecutionID    string `json:"execution_id"`
	StepID         string `json:"step_id"`
	SelectedBranch string `json:"selected_branch"`
	Decision       any    `json:"decision,omitempty"`
}

func (e BranchEvaluated) GetType() EventType {
	return BranchEvaluatedEvent
}
