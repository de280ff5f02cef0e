// Package main provides the Intentflow step automation worker.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/trace"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/eventbus"
	"github.com/intentflow/intentflow/pkg/events"
	"github.com/intentflow/intentflow/pkg/flow"
	"github.com/intentflow/intentflow/pkg/persistence"
	"github.com/intentflow/intentflow/pkg/retry"
	"github.com/intentflow/intentflow/pkg/steps"
)

type WorkerManager struct {
	id       string
	logger   *slog.Logger
	store    persistence.Persistence
	eventBus eventbus.EventBus
	runner   *steps.Runner
}

func NewWorkerManager(
	id string,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	intelligence steps.Intelligence,
	tracer trace.Tracer,
	logger *slog.Logger,
) *WorkerManager {
	auditLogger := audit.NewLogger(store.AuditRepository(), logger)
	fsm := flow.NewFSM(flow.DefaultGraph(), store.WorkflowRepository(), auditLogger, logger)
	boundary := flow.NewBoundary(fsm, eventBus, auditLogger, retry.DefaultPolicy(), logger)

	runner := steps.NewRunner(id, intelligence, store, boundary, auditLogger, retry.DefaultPolicy(), tracer, logger)

	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "intentflow-worker", "worker_id", id),
		store:    store,
		eventBus: eventBus,
		runner:   runner,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	for _, eventType := range events.StepTriggerTypes {
		if err := w.eventBus.Handle(eventType, w.runner.HandleStepTrigger); err != nil {
			return err
		}
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}
