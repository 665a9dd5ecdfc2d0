// Package advancedbranch provides the step handler that selects one of
// several named branches by field comparison, restricted expression or an
// AI adjudicated choice. The selected branch id and the decision reasoning
// land in the variable bag as _selectedBranch and _branchDecision.
package advancedbranch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/weftlabs/weft/pkg/condition"
	"github.com/weftlabs/weft/pkg/expr"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

var (
	// ErrNoBranchConfig is returned when the step carries no branches.
	ErrNoBranchConfig = errors.New("advanced_branch step has no branches")
	// ErrNoProvider is returned when an ai decision has no provider wired in.
	ErrNoProvider = errors.New("no AI provider configured for ai branch decisions")
)

// AdvancedBranch evaluates the configured decision rule and records the
// selected branch. Downstream steps read the selection from the bag; the
// handler itself never reroutes execution.
type AdvancedBranch struct {
	stepID   string
	config   models.BranchConfig
	provider protocol.AIProvider
}

// NewAdvancedBranch creates the handler from a workflow step.
func NewAdvancedBranch(step *models.WorkflowStep, provider protocol.AIProvider) (*AdvancedBranch, error) {
	if step.Branch == nil || len(step.Branch.Branches) == 0 {
		return nil, ErrNoBranchConfig
	}

	config := *step.Branch
	if config.Condition.Kind == "" {
		config.Condition.Kind = models.BranchKindField
	}

	return &AdvancedBranch{
		stepID:   step.ID,
		config:   config,
		provider: provider,
	}, nil
}

func (a *AdvancedBranch) Execute(ctx context.Context, execCtx models.ExecutionContext, logger *slog.Logger) (any, error) {
	logger = logger.With(
		"module", "advanced_branch_step",
		"condition_kind", string(a.config.Condition.Kind),
	)

	raw, reasoning, err := a.decide(ctx, execCtx)
	if err != nil {
		return nil, err
	}

	branchID, err := a.resolveBranch(raw)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Branch selected", "branch", branchID)

	return map[string]any{
		"_selectedBranch": branchID,
		"_branchDecision": reasoning,
	}, nil
}

// decide evaluates the decision rule and returns the raw decision value
// plus a human-readable reasoning line.
func (a *AdvancedBranch) decide(ctx context.Context, execCtx models.ExecutionContext) (string, string, error) {
	cond := a.config.Condition

	switch cond.Kind {
	case models.BranchKindField:
		fieldCond := models.StepCondition{Field: cond.Field, Operator: cond.Operator, Value: cond.Value}
		result := condition.Evaluate(&fieldCond, execCtx.Variables)

		reasoning := fmt.Sprintf("field %s %s %v evaluated %t", cond.Field, cond.Operator, cond.Value, result)

		return strconv.FormatBool(result), reasoning, nil

	case models.BranchKindExpression:
		value, err := expr.Evaluate(cond.Expression, execCtx.Variables)
		if err != nil {
			return "", "", fmt.Errorf("branch expression failed: %w", err)
		}

		reasoning := fmt.Sprintf("expression %q evaluated to %v", cond.Expression, value)

		return decisionString(value), reasoning, nil

	case models.BranchKindAI:
		if a.provider == nil {
			return "", "", ErrNoProvider
		}

		result, err := a.provider.Complete(ctx, protocol.CompletionRequest{
			Prompt: a.aiPrompt(execCtx),
		})
		if err != nil {
			return "", "", fmt.Errorf("branch decision failed: %w", err)
		}

		reasoning := result.Reasoning
		if reasoning == "" {
			reasoning = result.Content
		}

		return strings.TrimSpace(result.Content), reasoning, nil

	default:
		return "", "", fmt.Errorf("unknown branch condition kind '%s'", cond.Kind)
	}
}

func (a *AdvancedBranch) aiPrompt(execCtx models.ExecutionContext) string {
	ids := make([]string, 0, len(a.config.Branches))
	for _, branch := range a.config.Branches {
		ids = append(ids, branch.ID)
	}

	variables, err := json.Marshal(execCtx.Variables)
	if err != nil {
		variables = []byte("{}")
	}

	return fmt.Sprintf(
		"Choose exactly one branch id from [%s] for the following decision.\nDecision: %s\nContext:\n%s\nAnswer with the branch id only.",
		strings.Join(ids, ", "), a.config.Condition.Prompt, variables)
}

// resolveBranch maps the raw decision onto a branch id. An exact id match
// wins; with exactly two branches a boolean-like decision maps
// positionally, true selecting the first branch.
func (a *AdvancedBranch) resolveBranch(raw string) (string, error) {
	for _, branch := range a.config.Branches {
		if branch.ID == raw {
			return branch.ID, nil
		}
	}

	if boolValue, ok := parseBooleanLike(raw); ok && len(a.config.Branches) == 2 {
		if boolValue {
			return a.config.Branches[0].ID, nil
		}

		return a.config.Branches[1].ID, nil
	}

	return "", fmt.Errorf("no branch matches decision %q", raw)
}

func parseBooleanLike(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	default:
		return false, false
	}
}

func decisionString(value any) string {
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
