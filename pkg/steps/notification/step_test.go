package notification

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/models"
)

func TestNewNotificationRequiresMessage(t *testing.T) {
	_, err := NewNotification(&models.WorkflowStep{ID: "notify", Parameters: map[string]any{}})
	require.ErrorIs(t, err, ErrMessageMissing)
}

func TestExecuteEmitsIntentRecord(t *testing.T) {
	handler, err := NewNotification(&models.WorkflowStep{
		ID: "notify",
		Parameters: map[string]any{
			"channel": "deployments",
			"message": "release 1.4 is live",
		},
	})
	require.NoError(t, err)

	result, err := handler.Execute(t.Context(), models.ExecutionContext{}, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	require.NoError(t, err)

	fields, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "notification", fields["intent"])
	assert.Equal(t, "deployments", fields["channel"])
	assert.Equal(t, "release 1.4 is live", fields["message"])
}

func TestExecuteDefaultsChannel(t *testing.T) {
	handler, err := NewNotification(&models.WorkflowStep{
		ID:         "notify",
		Parameters: map[string]any{"message": "hello"},
	})
	require.NoError(t, err)

	result, err := handler.Execute(t.Context(), models.ExecutionContext{}, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	require.NoError(t, err)

	fields, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, defaultChannel, fields["channel"])
}
