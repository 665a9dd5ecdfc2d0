// Package main provides the Weft API server: the HTTP surface over the
// workflow execution engine.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weftlabs/weft/pkg/engine"
	"github.com/weftlabs/weft/pkg/registry"
	"github.com/weftlabs/weft/pkg/web"
)

type API struct {
	logger   *slog.Logger
	engine   *engine.Engine
	steps    *registry.Registry
	validate *validator.Validate
	promReg  *prometheus.Registry
}

func NewAPI(
	logger *slog.Logger,
	eng *engine.Engine,
	steps *registry.Registry,
	promReg *prometheus.Registry,
) *API {
	return &API{
		logger:   logger,
		engine:   eng,
		steps:    steps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		promReg:  promReg,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.steps, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Weft API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.RegisterWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Get("/:id/analytics", handlers.GetWorkflowAnalytics)

	i := app.Group("/integrations")
	i.Get("/", handlers.GetIntegrations)
	i.Post("/", handlers.RegisterIntegration)
	i.Delete("/:id", handlers.UnregisterIntegration)
	i.Patch("/:id/state", handlers.UpdateIntegrationState)
	i.Get("/:id/health", handlers.GetIntegrationHealth)

	r := app.Group("/routes")
	r.Get("/", handlers.GetRoutes)
	r.Post("/", handlers.RegisterRoute)
	r.Post("/resolve", handlers.ResolveRoute)

	e := app.Group("/executions")
	e.Get("/", handlers.GetActiveExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/cancel", handlers.CancelExecution)
	e.Post("/:id/pause", handlers.PauseExecution)
	e.Post("/:id/resume", handlers.ResumeExecution)

	app.Post("/webhooks/:id", handlers.TriggerWebhook)

	app.Get("/steps", handlers.GetStepTypes)
	app.Get("/health", handlers.HealthCheck)

	if a.promReg != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{})))
	}

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
