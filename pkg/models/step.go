package models

import (
	"math"
	"time"
)

// StepType identifies the handler responsible for a workflow step.
type StepType string

const (
	StepTypeIntegrationAction StepType = "integration_action"
	StepTypeDataTransform     StepType = "data_transform"
	StepTypeCondition         StepType = "condition"
	StepTypeParallel          StepType = "parallel"
	StepTypeWait              StepType = "wait"
	StepTypeWebhook           StepType = "webhook"
	StepTypeNotification      StepType = "notification"
	StepTypeAITask            StepType = "ai_task"
	StepTypeAdvancedBranch    StepType = "advanced_branch"
)

// RetryPolicy controls per-step retry behavior. After failed attempt k the
// next attempt waits delay_ms * backoff_multiplier^(k-1).
type RetryPolicy struct {
	MaxAttempts       int     `json:"max_attempts"`
	DelayMs           int64   `json:"delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// Backoff returns the wait before the given attempt. The first attempt
// (attempt == 1) runs immediately.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	multiplier := p.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}

	delay := float64(p.DelayMs) * math.Pow(multiplier, float64(attempt-2))

	return time.Duration(delay) * time.Millisecond
}

// StepCondition compares a named variable against a value. It gates step
// execution and route matching.
type StepCondition struct {
	Field    string `json:"field" validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    any    `json:"value,omitempty"`
}

// BranchConditionKind selects how an advanced_branch step decides.
type BranchConditionKind string

const (
	BranchKindField      BranchConditionKind = "field"
	BranchKindExpression BranchConditionKind = "expression"
	BranchKindAI         BranchConditionKind = "ai"
)

// BranchCondition drives branch selection. Field kind compares a variable,
// expression kind evaluates a restricted expression, ai kind delegates to
// the AI provider for a yes/no decision.
type BranchCondition struct {
	Kind       BranchConditionKind `json:"kind"`
	Field      string              `json:"field,omitempty"`
	Operator   string              `json:"operator,omitempty"`
	Value      any                 `json:"value,omitempty"`
	Expression string              `json:"expression,omitempty"`
	Prompt     string              `json:"prompt,omitempty"`
}

// Branch is one selectable outcome of an advanced_branch step.
type Branch struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label,omitempty"`
}

// BranchConfig holds the decision rule and the selectable branches for an
// advanced_branch step. With exactly two branches a boolean decision maps
// positionally: true selects the first branch.
type BranchConfig struct {
	Condition BranchCondition `json:"condition"`
	Branches  []Branch        `json:"branches" validate:"min=1"`
}

// AITaskType selects how an ai_task step builds its prompt.
type AITaskType string

const (
	AITaskCustom   AITaskType = "custom"
	AITaskPrebuilt AITaskType = "prebuilt"
	AITaskWorkflow AITaskType = "workflow"
	AITaskDecision AITaskType = "decision"
)

// AIConfig configures an ai_task step. Prompt carries the custom prompt or
// the decision question; Template names a prebuilt prompt for prebuilt
// tasks.
type AIConfig struct {
	Type        AITaskType `json:"type"`
	Prompt      string     `json:"prompt,omitempty"`
	Template    string     `json:"template,omitempty"`
	Model       string     `json:"model,omitempty"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
	Temperature float64    `json:"temperature,omitempty"`
}

// WorkflowStep is one node of a workflow DAG. Nested Steps are only
// meaningful for parallel steps; Branch only for advanced_branch; AI only
// for ai_task.
type WorkflowStep struct {
	ID            string          `json:"id" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Type          StepType        `json:"type" validate:"required"`
	IntegrationID string          `json:"integration_id,omitempty"`
	Action        string          `json:"action,omitempty"`
	Parameters    map[string]any  `json:"parameters,omitempty"`
	DependsOn     []string        `json:"depends_on,omitempty"`
	Condition     *StepCondition  `json:"condition,omitempty"`
	Retry         *RetryPolicy    `json:"retry,omitempty"`
	TimeoutMs     int64           `json:"timeout_ms,omitempty"`
	OnError       string          `json:"on_error,omitempty"` // Step id delegated to on final failure
	Branch        *BranchConfig   `json:"branch,omitempty"`
	AI            *AIConfig       `json:"ai,omitempty"`
	Steps         []*WorkflowStep `json:"steps,omitempty"`
}
