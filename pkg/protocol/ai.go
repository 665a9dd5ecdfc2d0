package protocol

import "context"

// CompletionRequest carries one prompt to an AI provider.
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionResult is the provider's answer plus its self-reported
// confidence and reasoning.
type CompletionResult struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// AIProvider is the pluggable completion capability behind ai_task steps
// and AI-adjudicated branches. Implementations may be slow and may fail;
// the engine applies the step's retry policy around calls.
type AIProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}
