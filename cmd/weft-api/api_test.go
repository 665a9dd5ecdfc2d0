package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/pkg/engine"
	"github.com/weftlabs/weft/pkg/integration"
	"github.com/weftlabs/weft/pkg/log"
	"github.com/weftlabs/weft/pkg/metrics"
	"github.com/weftlabs/weft/pkg/mocks"
	"github.com/weftlabs/weft/pkg/persistence/memory"
	"github.com/weftlabs/weft/pkg/registry"
	"github.com/weftlabs/weft/pkg/workflow"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := log.Discard()
	store := memory.NewPersistence()

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	config := engine.DefaultConfig()
	config.EnableMetrics = true

	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)

	steps := registry.NewRegistry(logger)
	integrations := integration.NewRegistry(logger, eventBus, nil)
	workflows := workflow.NewRegistry(logger, store, eventBus, steps, config.MaxStepsPerWorkflow, config.EnableCaching)

	eng := engine.New(config, logger, store, eventBus, integrations, workflows, steps, collector)

	steps.RegisterDefaultSteps(registry.Dependencies{
		Integrations: integrations,
		Runner:       eng,
	})

	require.NoError(t, eng.Start(context.Background()))

	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		eng.Stop(stopCtx)
	})

	api := NewAPI(logger, eng, steps, promReg)

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Weft API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_GetWorkflows_Empty(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Workflows  []any `json:"workflows"`
		TotalCount int   `json:"total_count"`
	}

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(payload, &body))

	assert.Empty(t, body.Workflows)
	assert.Zero(t, body.TotalCount)
}

func TestAPI_MetricsEndpoint(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "weft_queue_depth")
}
