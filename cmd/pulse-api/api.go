// Package main provides the Pulse API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/projectpulse/pulse/pkg/eventbus"
	"github.com/projectpulse/pulse/pkg/generation"
	"github.com/projectpulse/pulse/pkg/generation/gemini"
	"github.com/projectpulse/pulse/pkg/orchestration"
	"github.com/projectpulse/pulse/pkg/otelhelper"
	"github.com/projectpulse/pulse/pkg/persistence"
	"github.com/projectpulse/pulse/pkg/scheduler"
	"github.com/projectpulse/pulse/pkg/services"
	"github.com/projectpulse/pulse/pkg/web"
)

// APIConfig carries the wiring knobs of the API binary.
type APIConfig struct {
	WebhookURL     string
	WebhookTimeout time.Duration
	JobTimeout     time.Duration
	GenerationTTL  time.Duration
	RedisURL       string
	GeminiAPIKey   string
	GeminiModel    string
	BatchAI        int
	BatchHuman     int
	BatchHITL      int
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	config      APIConfig
	tracer      trace.Tracer
	runner      *generation.Runner
	coordinator *generation.Coordinator
	redisClient *redis.Client
}

// NewAPI wires the full orchestration stack. The generation worker pool is
// started here and stopped through Stop.
func NewAPI(
	ctx context.Context,
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	config APIConfig,
) (*API, error) {
	tracer, err := otelhelper.NewTracer(ctx, "pulse-api")
	if err != nil {
		logger.WarnContext(ctx, "tracing disabled, OTLP exporter unavailable", "error", err)

		tracer = otelhelper.NoopTracer()
	}

	api := &API{
		persistence: p,
		logger:      logger,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		config:      config,
		tracer:      tracer,
	}

	store, err := api.generationStore(ctx)
	if err != nil {
		return nil, err
	}

	engine, err := api.generationEngine(ctx)
	if err != nil {
		return nil, err
	}

	runnerConfig := generation.DefaultRunnerConfig()
	runnerConfig.JobTimeout = config.JobTimeout

	api.runner = generation.NewRunner(runnerConfig, logger)
	api.runner.Start()

	api.coordinator = generation.NewCoordinator(store, engine, api.runner, tracer, logger)

	return api, nil
}

func (a *API) generationStore(ctx context.Context) (generation.Store, error) {
	redisURL := a.config.RedisURL
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	a.redisClient = redis.NewClient(opts)

	err = a.redisClient.Ping(ctx).Err()
	if err != nil {
		a.logger.WarnContext(ctx, "redis not reachable at startup", "error", err)
	}

	return generation.NewRedisStore(a.redisClient, a.config.GenerationTTL), nil
}

func (a *API) generationEngine(ctx context.Context) (generation.Engine, error) {
	if a.config.GeminiAPIKey == "" {
		a.logger.InfoContext(ctx, "no Gemini API key configured, serving the canned generation plan")

		return generation.StaticEngine{}, nil
	}

	return gemini.NewEngine(ctx, gemini.Config{
		APIKey: a.config.GeminiAPIKey,
		Model:  a.config.GeminiModel,
	}, a.logger)
}

func (a *API) App() *fiber.App {
	projectService := services.NewProject(a.persistence, a.eventBus, a.logger)
	taskService := services.NewTask(a.persistence)

	trigger := orchestration.NewTrigger(
		a.config.WebhookURL,
		a.config.WebhookTimeout,
		a.persistence.ProjectRepository(),
		a.eventBus,
		a.tracer,
		a.logger,
	)
	tracker := orchestration.NewCompletionTracker(
		a.persistence.ProjectRepository(),
		a.persistence.TaskRepository(),
		a.eventBus,
		a.logger,
	)
	orchestrator := orchestration.NewOrchestrator(
		a.persistence.ProjectRepository(),
		a.persistence.TaskRepository(),
		scheduler.NewResolver(scheduler.BatchCaps{
			AI:    a.config.BatchAI,
			Human: a.config.BatchHuman,
			HITL:  a.config.BatchHITL,
		}),
		trigger,
		tracker,
		a.logger,
	)

	ingestor := services.NewCallbackIngestor(a.persistence, orchestrator, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(
		projectService,
		taskService,
		ingestor,
		orchestrator,
		a.coordinator,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Pulse API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}

// Stop shuts down the generation worker pool and the redis client.
func (a *API) Stop() {
	if a.runner != nil {
		a.runner.Stop()
	}

	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
}
