package advancedbranch

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/mocks"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func branchStep(config *models.BranchConfig) *models.WorkflowStep {
	return &models.WorkflowStep{
		ID:     "route",
		Name:   "Route",
		Type:   models.StepTypeAdvancedBranch,
		Branch: config,
	}
}

func TestNewAdvancedBranchRequiresBranches(t *testing.T) {
	_, err := NewAdvancedBranch(&models.WorkflowStep{ID: "b"}, nil)
	require.ErrorIs(t, err, ErrNoBranchConfig)

	_, err = NewAdvancedBranch(branchStep(&models.BranchConfig{}), nil)
	require.ErrorIs(t, err, ErrNoBranchConfig)
}

func TestFieldDecisionMapsPositionally(t *testing.T) {
	handler, err := NewAdvancedBranch(branchStep(&models.BranchConfig{
		Condition: models.BranchCondition{
			Kind:     models.BranchKindField,
			Field:    "amount",
			Operator: "greater_than",
			Value:    "100",
		},
		Branches: []models.Branch{{ID: "big"}, {ID: "small"}},
	}), nil)
	require.NoError(t, err)

	result, err := handler.Execute(t.Context(), models.ExecutionContext{
		Variables: map[string]any{"amount": 150},
	}, testLogger())
	require.NoError(t, err)

	fields, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "big", fields["_selectedBranch"])
	assert.Contains(t, fields["_branchDecision"], "greater_than")

	// The numeric comparison coerces the string literal, so a smaller
	// amount lands on the second branch.
	result, err = handler.Execute(t.Context(), models.ExecutionContext{
		Variables: map[string]any{"amount": 60},
	}, testLogger())
	require.NoError(t, err)

	fields, ok = result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "small", fields["_selectedBranch"])
}

func TestExpressionDecisionSelectsBranchByID(t *testing.T) {
	handler, err := NewAdvancedBranch(branchStep(&models.BranchConfig{
		Condition: models.BranchCondition{
			Kind:       models.BranchKindExpression,
			Expression: "if(severity == 'critical', 'page', 'log')",
		},
		Branches: []models.Branch{{ID: "page"}, {ID: "log"}, {ID: "ignore"}},
	}), nil)
	require.NoError(t, err)

	result, err := handler.Execute(t.Context(), models.ExecutionContext{
		Variables: map[string]any{"severity": "critical"},
	}, testLogger())
	require.NoError(t, err)

	fields, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "page", fields["_selectedBranch"])
}

func TestExpressionErrorFailsStep(t *testing.T) {
	handler, err := NewAdvancedBranch(branchStep(&models.BranchConfig{
		Condition: models.BranchCondition{
			Kind:       models.BranchKindExpression,
			Expression: "system('rm -rf /')",
		},
		Branches: []models.Branch{{ID: "a"}, {ID: "b"}},
	}), nil)
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), models.ExecutionContext{Variables: map[string]any{}}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch expression failed")
}

func TestAIDecisionPicksNamedBranch(t *testing.T) {
	provider := &mocks.MockAIProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).
		Return(protocol.CompletionResult{Content: "escalate", Reasoning: "error rate trending up"}, nil)

	handler, err := NewAdvancedBranch(branchStep(&models.BranchConfig{
		Condition: models.BranchCondition{
			Kind:   models.BranchKindAI,
			Prompt: "Should this incident be escalated?",
		},
		Branches: []models.Branch{{ID: "escalate"}, {ID: "monitor"}, {ID: "close"}},
	}), provider)
	require.NoError(t, err)

	result, err := handler.Execute(t.Context(), models.ExecutionContext{}, testLogger())
	require.NoError(t, err)

	fields, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "escalate", fields["_selectedBranch"])
	assert.Equal(t, "error rate trending up", fields["_branchDecision"])
}

func TestAIBooleanAnswerMapsPositionally(t *testing.T) {
	provider := &mocks.MockAIProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).
		Return(protocol.CompletionResult{Content: "true"}, nil)

	handler, err := NewAdvancedBranch(branchStep(&models.BranchConfig{
		Condition: models.BranchCondition{
			Kind:   models.BranchKindAI,
			Prompt: "Is this urgent?",
		},
		Branches: []models.Branch{{ID: "urgent"}, {ID: "routine"}},
	}), provider)
	require.NoError(t, err)

	result, err := handler.Execute(t.Context(), models.ExecutionContext{}, testLogger())
	require.NoError(t, err)

	fields, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "urgent", fields["_selectedBranch"])
}

func TestUnmatchedDecisionFails(t *testing.T) {
	handler, err := NewAdvancedBranch(branchStep(&models.BranchConfig{
		Condition: models.BranchCondition{
			Kind:     models.BranchKindField,
			Field:    "flag",
			Operator: "equals",
			Value:    true,
		},
		Branches: []models.Branch{{ID: "a"}, {ID: "b"}, {ID: "c"}},
	}), nil)
	require.NoError(t, err)

	// Three branches rule out positional boolean mapping.
	_, err = handler.Execute(t.Context(), models.ExecutionContext{
		Variables: map[string]any{"flag": true},
	}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no branch matches decision")
}
