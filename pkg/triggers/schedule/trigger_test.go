package schedule

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestNewTriggerValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr string
	}{
		{
			name:    "missing cron expression",
			config:  map[string]any{},
			wantErr: "no cron expression",
		},
		{
			name:    "malformed cron expression",
			config:  map[string]any{"cron": "not a cron"},
			wantErr: "invalid cron expression",
		},
		{
			name:   "standard five field expression",
			config: map[string]any{"cron": "*/5 * * * *"},
		},
		{
			name:   "descriptor expression",
			config: map[string]any{"cron": "@hourly"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := NewTrigger(tt.config, testLogger())

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.True(t, trigger.Enabled)
		})
	}
}

func TestTriggerFiresCallback(t *testing.T) {
	trigger, err := NewTrigger(map[string]any{"cron": "@every 100ms"}, testLogger())
	require.NoError(t, err)

	fired := make(chan map[string]any, 8)

	err = trigger.Start(t.Context(), func(_ context.Context, data map[string]any) error {
		select {
		case fired <- data:
		default:
		}

		return nil
	})
	require.NoError(t, err)

	select {
	case data := <-fired:
		assert.Equal(t, "@every 100ms", data["schedule"])
		assert.NotEmpty(t, data["timestamp"])
	case <-time.After(5 * time.Second):
		t.Fatal("trigger never fired")
	}

	require.NoError(t, trigger.Stop(t.Context()))
}

func TestDisabledTriggerDoesNotFire(t *testing.T) {
	trigger, err := NewTrigger(map[string]any{"cron": "@every 50ms", "enabled": false}, testLogger())
	require.NoError(t, err)

	var calls atomic.Int32

	err = trigger.Start(t.Context(), func(_ context.Context, _ map[string]any) error {
		calls.Add(1)

		return nil
	})
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())

	require.NoError(t, trigger.Stop(t.Context()))
}

func TestFactoryCreate(t *testing.T) {
	factory := NewScheduleFactory()
	assert.Equal(t, "schedule", factory.ID())

	_, err := factory.Create(nil, testLogger())
	require.ErrorIs(t, err, ErrConfigNil)

	trigger, err := factory.Create(map[string]any{"cron": "0 9 * * *"}, testLogger())
	require.NoError(t, err)
	require.NoError(t, trigger.Validate())
}
