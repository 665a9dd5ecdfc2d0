// Package aitask provides the step handler that builds a prompt per task
// type and dispatches it to the configured AI provider. The provider is a
// pluggable, possibly slow, fallible capability; its failures are
// ordinary step failures and go through the step retry policy.
package aitask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

var (
	// ErrNoAIConfig is returned when the step carries no AI configuration.
	ErrNoAIConfig = errors.New("ai_task step has no AI configuration")
	// ErrNoProvider is returned when no AI provider was wired in.
	ErrNoProvider = errors.New("no AI provider configured")
	// ErrPromptMissing is returned when a custom or decision task has no prompt.
	ErrPromptMissing = errors.New("ai task has no prompt")
)

// prebuiltTemplates are the canned prompts selectable by template name.
// Each takes the execution variables as JSON.
var prebuiltTemplates = map[string]string{
	"summarize":        "Summarize the following workflow data in a short paragraph:\n%s",
	"classify":         "Classify the following workflow data into a single category and name it:\n%s",
	"extract_entities": "List the named entities found in the following workflow data:\n%s",
	"sentiment":        "Rate the sentiment of the following workflow data as positive, neutral or negative:\n%s",
}

// AITask dispatches one completion request built from the step's AI
// configuration and the execution context.
type AITask struct {
	stepID   string
	config   models.AIConfig
	provider protocol.AIProvider
}

// NewAITask creates the handler from a workflow step.
func NewAITask(step *models.WorkflowStep, provider protocol.AIProvider) (*AITask, error) {
	if step.AI == nil {
		return nil, ErrNoAIConfig
	}

	config := *step.AI
	if config.Type == "" {
		config.Type = models.AITaskCustom
	}

	return &AITask{
		stepID:   step.ID,
		config:   config,
		provider: provider,
	}, nil
}

func (a *AITask) Execute(ctx context.Context, execCtx models.ExecutionContext, logger *slog.Logger) (any, error) {
	logger = logger.With(
		"module", "ai_task_step",
		"task_type", string(a.config.Type),
	)

	if a.provider == nil {
		return nil, ErrNoProvider
	}

	prompt, err := a.buildPrompt(execCtx)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Dispatching AI task", "model", a.config.Model)

	result, err := a.provider.Complete(ctx, protocol.CompletionRequest{
		Prompt:      prompt,
		Model:       a.config.Model,
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	})
	if err != nil {
		logger.ErrorContext(ctx, "AI task failed", "error", err)

		return nil, fmt.Errorf("ai task failed: %w", err)
	}

	logger.InfoContext(ctx, "AI task completed", "confidence", result.Confidence)

	return map[string]any{
		"content":    result.Content,
		"confidence": result.Confidence,
		"reasoning":  result.Reasoning,
		"task_type":  string(a.config.Type),
	}, nil
}

// buildPrompt assembles the prompt for the configured task type.
func (a *AITask) buildPrompt(execCtx models.ExecutionContext) (string, error) {
	switch a.config.Type {
	case models.AITaskCustom:
		if a.config.Prompt == "" {
			return "", ErrPromptMissing
		}

		return a.config.Prompt, nil

	case models.AITaskPrebuilt:
		template, ok := prebuiltTemplates[a.config.Template]
		if !ok {
			return "", fmt.Errorf("unknown prebuilt template '%s'", a.config.Template)
		}

		return fmt.Sprintf(template, contextJSON(execCtx.Variables)), nil

	case models.AITaskWorkflow:
		return fmt.Sprintf(
			"Analyze this workflow execution and point out failures, bottlenecks and possible improvements.\nWorkflow: %s\nExecution: %s\nStep results:\n%s",
			execCtx.WorkflowID, execCtx.ID, contextJSON(execCtx.StepResults)), nil

	case models.AITaskDecision:
		if a.config.Prompt == "" {
			return "", ErrPromptMissing
		}

		return fmt.Sprintf(
			"Decide the following question with a strict true or false answer, plus reasoning and a confidence between 0 and 1.\nQuestion: %s\nContext:\n%s",
			a.config.Prompt, contextJSON(execCtx.Variables)), nil

	default:
		return "", fmt.Errorf("unknown ai task type '%s'", a.config.Type)
	}
}

func contextJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}

	return string(data)
}
