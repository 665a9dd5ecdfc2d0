package protocol

import "context"

// IntegrationAdapter is the outbound dispatch surface: it performs one
// action against a registered integration and accounts for the call in the
// integration's usage and rate-limit state.
type IntegrationAdapter interface {
	Execute(ctx context.Context, integrationID, action string, params map[string]any) (any, error)
}
