package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/weftlabs/weft/pkg/protocol"
)

// MockAIProvider is a mock implementation of the protocol.AIProvider
// interface.
type MockAIProvider struct {
	mock.Mock
}

func (m *MockAIProvider) Complete(ctx context.Context, req protocol.CompletionRequest) (protocol.CompletionResult, error) {
	args := m.Called(ctx, req)

	result, _ := args.Get(0).(protocol.CompletionResult)

	return result, args.Error(1)
}

// MockIntegrationAdapter is a mock implementation of the
// protocol.IntegrationAdapter interface.
type MockIntegrationAdapter struct {
	mock.Mock
}

func (m *MockIntegrationAdapter) Execute(ctx context.Context, integrationID, action string, params map[string]any) (any, error) {
	args := m.Called(ctx, integrationID, action, params)

	return args.Get(0), args.Error(1)
}

// MockTrigger is a mock implementation of the protocol.Trigger interface.
type MockTrigger struct {
	mock.Mock
}

func (m *MockTrigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	args := m.Called(ctx, callback)

	return args.Error(0)
}

func (m *MockTrigger) Stop(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockTrigger) Validate() error {
	args := m.Called()

	return args.Error(0)
}
