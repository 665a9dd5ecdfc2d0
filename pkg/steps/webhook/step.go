// Package webhook provides the step handler that records an outbound
// webhook intent. Actual delivery is the surrounding system's job; real
// dispatch goes through an integration action instead.
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/weftlabs/weft/pkg/models"
)

// ErrURLMissing is returned when the step declares no target URL.
var ErrURLMissing = errors.New("missing required parameter 'url'")

type Webhook struct {
	stepID  string
	url     string
	method  string
	payload any
}

func NewWebhook(step *models.WorkflowStep) (*Webhook, error) {
	url, ok := step.Parameters["url"].(string)
	if !ok || url == "" {
		return nil, ErrURLMissing
	}

	method, _ := step.Parameters["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	return &Webhook{
		stepID:  step.ID,
		url:     url,
		method:  strings.ToUpper(method),
		payload: step.Parameters["payload"],
	}, nil
}

func (a *Webhook) Execute(ctx context.Context, _ models.ExecutionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "webhook_step")
	logger.InfoContext(ctx, "Webhook intent emitted", "url", a.url, "method", a.method)

	return map[string]any{
		"intent":     "webhook",
		"url":        a.url,
		"method":     a.method,
		"payload":    a.payload,
		"emitted_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}
