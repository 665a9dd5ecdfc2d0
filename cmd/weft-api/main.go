package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	cli "github.com/urfave/cli/v3"

	"github.com/weftlabs/weft/pkg/cmd"
	"github.com/weftlabs/weft/pkg/engine"
	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/integration"
	"github.com/weftlabs/weft/pkg/log"
	"github.com/weftlabs/weft/pkg/metrics"
	"github.com/weftlabs/weft/pkg/otelhelper"
	"github.com/weftlabs/weft/pkg/registry"
	"github.com/weftlabs/weft/pkg/triggers"
	"github.com/weftlabs/weft/pkg/workflow"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "weft-api",
		Usage:                 "Run the workflow execution engine and its API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL (memory:// or postgres://)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus transport (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka broker list, required for the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent-executions",
				Usage:   "How many executions may run simultaneously",
				Value:   engine.DefaultMaxConcurrentExecutions,
				Sources: cli.EnvVars("MAX_CONCURRENT_EXECUTIONS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing Weft API")

	if command.Bool("tracing") {
		provider, err := otelhelper.InitTracer(ctx, "weft-api")
		if err != nil {
			return err
		}

		defer func() {
			if err := provider.Shutdown(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()
	}

	eventBus := cmd.NewEventBus(
		command.String("event-bus"), "weft-api", command.String("kafka-brokers"), logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	steps := cmd.NewRegistry(logger)

	config := engine.DefaultConfig()
	config.MaxConcurrentExecutions = command.Int("max-concurrent-executions")

	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)

	integrations := integration.NewRegistry(logger, eventBus, nil)
	workflows := workflow.NewRegistry(
		logger, store, eventBus, steps, config.MaxStepsPerWorkflow, config.EnableCaching)

	eng := engine.New(config, logger, store, eventBus, integrations, workflows, steps, collector)

	// No AI provider is wired by default; ai_task steps fail with a clear
	// error until a deployment injects one.
	steps.RegisterDefaultSteps(registry.Dependencies{
		Integrations: integrations,
		Runner:       eng,
	})

	if err := workflows.Load(ctx); err != nil {
		return err
	}

	if err := eng.Load(ctx); err != nil {
		return err
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		eng.Stop(stopCtx)
	}()

	triggerManager := triggers.NewManager(eng, steps, logger)
	if err := triggerManager.Start(ctx); err != nil {
		return err
	}

	defer triggerManager.Stop(ctx)

	// Re-reconcile triggers whenever a workflow is registered, so schedule
	// and queue declarations come alive without a restart.
	if err := eventBus.Handle(events.WorkflowRegisteredEvent, func(handlerCtx context.Context, _ any) error {
		return triggerManager.Sync(handlerCtx)
	}); err != nil {
		return err
	}

	if err := eventBus.Subscribe(ctx); err != nil {
		return err
	}

	api := NewAPI(logger, eng, steps, promReg)

	return api.Start(command.Int("port"))
}
