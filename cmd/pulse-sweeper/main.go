// Package main provides the Pulse sweeper, the operator-owned retry path:
// it periodically re-runs the orchestration pass over every running
// project so a lost trigger or missed callback never strands a project.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/projectpulse/pulse/pkg/cmd"
	"github.com/projectpulse/pulse/pkg/log"
	"github.com/projectpulse/pulse/pkg/models"
	"github.com/projectpulse/pulse/pkg/orchestration"
	"github.com/projectpulse/pulse/pkg/otelhelper"
	"github.com/projectpulse/pulse/pkg/persistence"
	"github.com/projectpulse/pulse/pkg/scheduler"
)

func main() {
	logger := log.WithModule("sweeper")

	command := &cli.Command{
		Name:                  "pulse-sweeper",
		Usage:                 "Periodically re-trigger orchestration for running projects",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
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
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron schedule for the sweep",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Pulse sweeper",
				"schedule", command.String("schedule"))

			p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := p.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			tracer, err := otelhelper.NewTracer(ctx, "pulse-sweeper")
			if err != nil {
				logger.WarnContext(ctx, "tracing disabled, OTLP exporter unavailable", "error", err)

				tracer = otelhelper.NoopTracer()
			}

			trigger := orchestration.NewTrigger(
				command.String("webhook-url"),
				command.Duration("webhook-timeout"),
				p.ProjectRepository(),
				nil,
				tracer,
				logger,
			)
			tracker := orchestration.NewCompletionTracker(
				p.ProjectRepository(),
				p.TaskRepository(),
				nil,
				logger,
			)
			orchestrator := orchestration.NewOrchestrator(
				p.ProjectRepository(),
				p.TaskRepository(),
				scheduler.NewResolver(scheduler.BatchCaps{
					AI:    command.Int("batch-ai"),
					Human: command.Int("batch-human"),
					HITL:  command.Int("batch-hitl"),
				}),
				trigger,
				tracker,
				logger,
			)

			runner := cron.New()

			_, err = runner.AddFunc(command.String("schedule"), func() {
				sweep(ctx, logger, p, orchestrator)
			})
			if err != nil {
				return err
			}

			runner.Start()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			logger.InfoContext(ctx, "Shutting down Pulse sweeper")

			<-runner.Stop().Done()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

// sweep runs one orchestration pass over every running project. Failures
// are logged per project and never abort the sweep.
func sweep(ctx context.Context, logger *slog.Logger, p persistence.Persistence, orchestrator *orchestration.Orchestrator) {
	projects, err := p.ProjectRepository().GetAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "sweep failed to list projects", "error", err)

		return
	}

	swept := 0
	triggered := 0

	for _, project := range projects {
		if project.OrchestrationStatus != models.OrchestrationRunning {
			continue
		}

		swept++

		ok, err := orchestrator.RunPass(ctx, project.ID, orchestration.TriggerSourceScheduled)
		if err != nil {
			logger.ErrorContext(ctx, "sweep pass failed",
				"project_id", project.ID,
				"error", err)

			continue
		}

		if ok {
			triggered++
		}
	}

	logger.InfoContext(ctx, "sweep finished",
		"running_projects", swept,
		"triggered", triggered)
}
