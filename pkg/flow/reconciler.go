package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/eventbus"
	"github.com/intentflow/intentflow/pkg/events"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
	"github.com/intentflow/intentflow/pkg/schema"
)

// DefaultStaleAfter is how long a non-terminal workflow may sit untouched
// before the reconciler considers its trigger lost.
const DefaultStaleAfter = 30 * time.Minute

// ReconcilerActorID identifies sweep-originated audit entries and triggers.
const ReconcilerActorID = "system:reconciler"

// Reconciler re-emits step triggers for workflows stuck in a non-terminal
// state. Because triggers are published after the transition commits, a
// crash or broker outage in between leaves the workflow parked; the sweep
// is the recovery path. Handlers are idempotent, so a duplicate trigger for
// a workflow that is merely slow is harmless.
type Reconciler struct {
	graph      Graph
	workflows  persistence.WorkflowRepository
	publisher  eventbus.EventPublisher
	audit      *audit.Logger
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewReconciler creates a sweep over the given repository and publisher.
// A staleAfter of zero falls back to DefaultStaleAfter.
func NewReconciler(graph Graph, workflows persistence.WorkflowRepository, publisher eventbus.EventPublisher, auditLogger *audit.Logger, staleAfter time.Duration, logger *slog.Logger) *Reconciler {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	return &Reconciler{
		graph:      graph,
		workflows:  workflows,
		publisher:  publisher,
		audit:      auditLogger,
		staleAfter: staleAfter,
		logger:     logger.With("module", "reconciler"),
	}
}

// Sweep finds stale workflows and re-emits each one's pending step trigger.
// A single failed emission does not stop the sweep. Returns the number of
// triggers re-emitted.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.staleAfter)

	stale, err := r.workflows.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reemitted := 0

	for _, workflow := range stale {
		if awaitingApproval(workflow) {
			continue
		}

		if err := r.reemit(ctx, workflow); err != nil {
			r.logger.ErrorContext(ctx, "Failed to re-emit trigger",
				"workflow_id", workflow.ID,
				"status", workflow.Status,
				"error", err)

			continue
		}

		reemitted++
	}

	if len(stale) > 0 {
		r.logger.InfoContext(ctx, "Reconciliation sweep finished",
			"stale", len(stale),
			"reemitted", reemitted)
	}

	return reemitted, nil
}

// awaitingApproval reports whether the workflow is parked at an
// approval-gated step whose automation already merged its fragment. Those
// workflows are waiting on a human, not on a lost trigger, and re-emitting
// would only burn intelligence spend for a step that is done.
func awaitingApproval(workflow *models.Workflow) bool {
	if _, gated := models.StepApprovalType(workflow.Status); !gated {
		return false
	}

	return schema.FragmentPresent(workflow.Status, workflow.WorkflowData)
}

func (r *Reconciler) reemit(ctx context.Context, workflow *models.Workflow) error {
	trigger, ok := r.graph.StepTrigger(workflow.Status)
	if !ok {
		// Terminal rows never come back from ListStale; an unknown step
		// state means a graph/schema mismatch worth surfacing.
		r.logger.WarnContext(ctx, "No trigger for workflow state",
			"workflow_id", workflow.ID,
			"status", workflow.Status)

		return nil
	}

	event := events.StepTrigger{
		BaseEvent:  events.NewBaseEvent(trigger, workflow.ID),
		ToStatus:   workflow.Status,
		ActorID:    ReconcilerActorID,
		Reemission: true,
	}

	if err := r.publisher.Publish(ctx, workflow.ID, event); err != nil {
		return err
	}

	actor := models.Actor{ID: ReconcilerActorID, OrganizationID: workflow.OrganizationID}
	r.audit.Log(ctx, audit.Entry(actor, models.AuditReconciliationReemit, models.EntityWorkflow, workflow.ID, workflow.ID, map[string]any{
		"status":     string(workflow.Status),
		"event_type": string(trigger),
		"stale_for":  time.Since(workflow.UpdatedAt).String(),
	}))

	return nil
}
