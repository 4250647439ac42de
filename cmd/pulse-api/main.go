package main

import (
	"context"
	"os"
	"time"

	"github.com/projectpulse/pulse/pkg/cmd"
	"github.com/projectpulse/pulse/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "pulse-api",
		Usage:                 "Project task orchestration API",
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
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the generation record store",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "webhook-url",
				Usage:    "External workflow runner webhook URL",
				Required: true,
				Sources:  cli.EnvVars("WEBHOOK_URL"),
			},
			&cli.DurationFlag{
				Name:    "webhook-timeout",
				Usage:   "Timeout for the outbound workflow trigger call",
				Value:   120 * time.Second,
				Sources: cli.EnvVars("WEBHOOK_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "job-timeout",
				Usage:   "Timeout for a background generation job",
				Value:   200 * time.Second,
				Sources: cli.EnvVars("GENERATION_JOB_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "generation-ttl",
				Usage:   "TTL for unconsumed generation records",
				Value:   10 * time.Minute,
				Sources: cli.EnvVars("GENERATION_TTL"),
			},
			&cli.IntFlag{
				Name:    "batch-ai",
				Usage:   "Max AI tasks per orchestration trigger",
				Value:   2,
				Sources: cli.EnvVars("BATCH_AI"),
			},
			&cli.IntFlag{
				Name:    "batch-human",
				Usage:   "Max human tasks per orchestration trigger",
				Value:   1,
				Sources: cli.EnvVars("BATCH_HUMAN"),
			},
			&cli.IntFlag{
				Name:    "batch-hitl",
				Usage:   "Max HITL tasks per orchestration trigger",
				Value:   1,
				Sources: cli.EnvVars("BATCH_HITL"),
			},
			&cli.StringFlag{
				Name:    "gemini-api-key",
				Usage:   "Gemini API key for AI task generation (canned plan is served when unset)",
				Sources: cli.EnvVars("GEMINI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "gemini-model",
				Usage:   "Gemini model name",
				Sources: cli.EnvVars("GEMINI_MODEL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Pulse API")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "pulse-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api, err := NewAPI(ctx, logger, persistence, eventBus, APIConfig{
				WebhookURL:     command.String("webhook-url"),
				WebhookTimeout: command.Duration("webhook-timeout"),
				JobTimeout:     command.Duration("job-timeout"),
				GenerationTTL:  command.Duration("generation-ttl"),
				RedisURL:       command.String("redis-url"),
				GeminiAPIKey:   command.String("gemini-api-key"),
				GeminiModel:    command.String("gemini-model"),
				BatchAI:        command.Int("batch-ai"),
				BatchHuman:     command.Int("batch-human"),
				BatchHITL:      command.Int("batch-hitl"),
			})
			if err != nil {
				return err
			}

			defer api.Stop()

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "API server stopped", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
