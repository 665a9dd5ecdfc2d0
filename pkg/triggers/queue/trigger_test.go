package queue

import (
	"log/slog"
	"os"
	"testing"

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
			name: "valid redis config",
			config: map[string]any{
				"provider": "redis",
				"queue":    "orders",
				"connection": map[string]any{
					"addr": "localhost:6379",
					"db":   "2",
				},
			},
		},
		{
			name:   "provider defaults to redis",
			config: map[string]any{"queue": "orders"},
		},
		{
			name:    "missing queue name",
			config:  map[string]any{"provider": "redis"},
			wantErr: "no queue name",
		},
		{
			name:    "unsupported provider",
			config:  map[string]any{"provider": "sqs", "queue": "orders"},
			wantErr: "unsupported queue provider",
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
			assert.Equal(t, "orders", trigger.Queue)
		})
	}
}

func TestNewTriggerConnectionParsing(t *testing.T) {
	trigger, err := NewTrigger(map[string]any{
		"queue": "orders",
		"connection": map[string]any{
			"addr":     "redis.internal:6380",
			"password": "hunter2",
			"db":       "3",
			"ignored":  42,
		},
	}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", trigger.Connection["addr"])
	assert.Equal(t, "hunter2", trigger.Connection["password"])
	assert.Equal(t, "3", trigger.Connection["db"])
	assert.NotContains(t, trigger.Connection, "ignored", "non-string values dropped")
}

func TestDecodePayload(t *testing.T) {
	data := decodePayload(`{"order_id": "o-1", "amount": 42}`)
	assert.Equal(t, "o-1", data["order_id"])
	assert.NotEmpty(t, data["timestamp"], "timestamp added when missing")

	data = decodePayload(`{"order_id": "o-2", "timestamp": "2026-08-24T10:00:00Z"}`)
	assert.Equal(t, "2026-08-24T10:00:00Z", data["timestamp"])

	data = decodePayload("plain text message")
	assert.Equal(t, "plain text message", data["message"])
	assert.NotEmpty(t, data["timestamp"])
}

func TestFactoryCreate(t *testing.T) {
	factory := NewQueueFactory()
	assert.Equal(t, "queue", factory.ID())

	_, err := factory.Create(nil, testLogger())
	require.ErrorIs(t, err, ErrConfigNil)

	_, err = factory.Create(map[string]any{}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no queue name")

	trigger, err := factory.Create(map[string]any{"queue": "orders"}, testLogger())
	require.NoError(t, err)
	require.NoError(t, trigger.Validate())
}
