package integrationaction

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/mocks"
	"github.com/weftlabs/weft/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestNewIntegrationActionRequiresIntegrationAndAction(t *testing.T) {
	_, err := NewIntegrationAction(&models.WorkflowStep{ID: "s1", Action: "send_message"}, nil)
	require.ErrorIs(t, err, ErrIntegrationIDMissing)

	_, err = NewIntegrationAction(&models.WorkflowStep{ID: "s1", IntegrationID: "slack"}, nil)
	require.ErrorIs(t, err, ErrActionMissing)
}

func TestExecuteForwardsToDispatcher(t *testing.T) {
	adapter := &mocks.MockIntegrationAdapter{}
	params := map[string]any{"channel": "#ops"}

	adapter.On("Execute", mock.Anything, "slack", "send_message", params).
		Return(map[string]any{"ok": true}, nil)

	handler, err := NewIntegrationAction(&models.WorkflowStep{
		ID:            "notify",
		IntegrationID: "slack",
		Action:        "send_message",
		Parameters:    params,
	}, adapter)
	require.NoError(t, err)

	result, err := handler.Execute(t.Context(), models.ExecutionContext{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, result)
	adapter.AssertExpectations(t)
}

func TestExecuteWrapsDispatcherError(t *testing.T) {
	adapter := &mocks.MockIntegrationAdapter{}
	adapter.On("Execute", mock.Anything, "jira", "create_issue", mock.Anything).
		Return(nil, errors.New("rate limit budget exhausted"))

	handler, err := NewIntegrationAction(&models.WorkflowStep{
		ID:            "ticket",
		IntegrationID: "jira",
		Action:        "create_issue",
	}, adapter)
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), models.ExecutionContext{}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integration action failed")
}

func TestExecuteWithoutDispatcher(t *testing.T) {
	handler, err := NewIntegrationAction(&models.WorkflowStep{
		ID:            "notify",
		IntegrationID: "slack",
		Action:        "send_message",
	}, nil)
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), models.ExecutionContext{}, testLogger())
	require.ErrorIs(t, err, ErrNoDispatcher)
}
