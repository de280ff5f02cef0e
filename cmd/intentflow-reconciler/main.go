// Package main provides the reconciliation sweeper that re-emits triggers
// for workflows stuck between a committed transition and a lost event.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/cmd"
	"github.com/intentflow/intentflow/pkg/flow"
	"github.com/intentflow/intentflow/pkg/log"
)

func main() {
	logger := log.WithModule("reconciler")

	command := &cli.Command{
		Name:                  "intentflow-reconciler",
		EnableShellCompletion: true,
		Usage:                 "Periodically re-emit triggers for stuck workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron schedule for the reconciliation sweep",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("RECONCILE_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "stale-after",
				Usage:   "How long a workflow may sit in a step before it is considered stuck",
				Value:   flow.DefaultStaleAfter,
				Sources: cli.EnvVars("STALE_AFTER"),
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

			logger.InfoContext(ctx, "Initializing Intentflow Reconciler")

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "intentflow-reconciler", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			auditLogger := audit.NewLogger(store.AuditRepository(), logger)
			reconciler := flow.NewReconciler(
				flow.DefaultGraph(),
				store.WorkflowRepository(),
				eventBus,
				auditLogger,
				command.Duration("stale-after"),
				logger,
			)

			sweep := func() {
				sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
				defer cancel()

				reemitted, err := reconciler.Sweep(sweepCtx)
				if err != nil {
					logger.ErrorContext(sweepCtx, "Reconciliation sweep failed", "error", err)

					return
				}

				logger.InfoContext(sweepCtx, "Reconciliation sweep finished", "reemitted", reemitted)
			}

			scheduler := cron.New()

			if _, err := scheduler.AddFunc(command.String("schedule"), sweep); err != nil {
				return err
			}

			scheduler.Start()

			logger.InfoContext(ctx, "Reconciler started", "schedule", command.String("schedule"))

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down reconciler...")

			<-scheduler.Stop().Done()

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
