// Package main provides the Sendloop warmer: the cron-driven companion
// that resumes due executions, advances warming days and rolls up
// reputation scores.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/sendloop/sendloop/pkg/cmd"
	"github.com/sendloop/sendloop/pkg/log"
	"github.com/sendloop/sendloop/pkg/otelhelper"
	"github.com/sendloop/sendloop/pkg/reputation"
	"github.com/sendloop/sendloop/pkg/scheduler"
	"github.com/sendloop/sendloop/pkg/warming"
	"github.com/sendloop/sendloop/pkg/workflow"
)

const shutdownTimeout = 30 * time.Second

func main() {
	command := &cli.Command{
		Name:                  "sendloop-warmer",
		Usage:                 "Run the resume, warming and reputation cron jobs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for wait-event subscriptions (in-memory when unset)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "agent-service-url",
				Usage:   "Base URL of the agent service",
				Sources: cli.EnvVars("AGENT_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "resume-spec",
				Usage:   "Cron spec for resuming due executions",
				Sources: cli.EnvVars("RESUME_SPEC"),
			},
			&cli.StringFlag{
				Name:    "warming-spec",
				Usage:   "Cron spec for the daily warming advance",
				Sources: cli.EnvVars("WARMING_SPEC"),
			},
			&cli.StringFlag{
				Name:    "health-spec",
				Usage:   "Cron spec for the daily reputation rollup",
				Sources: cli.EnvVars("HEALTH_SPEC"),
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

			logger := log.WithModule("warmer")
			logger.InfoContext(ctx, "Initializing Sendloop warmer")

			tracer, err := otelhelper.NewTracer(ctx, "sendloop-warmer")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			store, err := cmd.NewSubscriptionStore(ctx, logger, command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close subscription store", "error", err)
				}
			}()

			registry := cmd.NewRegistry(logger, persistence, eventBus, store, command.String("agent-service-url"))

			sched := scheduler.NewScheduler(
				workflow.NewEngine(persistence, registry, eventBus, tracer, logger),
				warming.NewEngine(persistence, eventBus, tracer, logger),
				reputation.NewScorer(persistence, eventBus, logger),
				scheduler.Config{
					ResumeSpec:  command.String("resume-spec"),
					WarmingSpec: command.String("warming-spec"),
					HealthSpec:  command.String("health-spec"),
				},
				logger,
			)

			if err := sched.Start(ctx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down warmer")

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			sched.Stop(stopCtx)

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
