package steps

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/events"
	"github.com/intentflow/intentflow/pkg/flow"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/otelhelper"
	"github.com/intentflow/intentflow/pkg/persistence"
	"github.com/intentflow/intentflow/pkg/retry"
	"github.com/intentflow/intentflow/pkg/schema"
)

// Runner executes step automation in response to step triggers. Handlers
// are idempotent: a stale or duplicate trigger for a workflow that already
// moved on is skipped, and a duplicate for the current step never re-runs
// automation whose output is already merged.
type Runner struct {
	workerID     string
	intelligence Intelligence
	store        persistence.Persistence
	boundary     *flow.Boundary
	audit        *audit.Logger
	retryPolicy  retry.Policy
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewRunner creates a step runner. The tracer may be nil when tracing is
// disabled.
func NewRunner(workerID string, intelligence Intelligence, store persistence.Persistence, boundary *flow.Boundary, auditLogger *audit.Logger, retryPolicy retry.Policy, tracer trace.Tracer, logger *slog.Logger) *Runner {
	return &Runner{
		workerID:     workerID,
		intelligence: intelligence,
		store:        store,
		boundary:     boundary,
		audit:        auditLogger,
		retryPolicy:  retryPolicy,
		tracer:       tracer,
		logger:       logger.With("module", "steps", "worker_id", workerID),
	}
}

// HandleStepTrigger is the event bus handler for every step trigger type.
func (r *Runner) HandleStepTrigger(ctx context.Context, event any) (err error) {
	trigger, ok := event.(*events.StepTrigger)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	if r.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, r.tracer, "steps.run",
			attribute.String(otelhelper.WorkflowIDKey, trigger.WorkflowID),
			attribute.String(otelhelper.WorkflowStatusKey, string(trigger.ToStatus)),
			attribute.String(otelhelper.EventIDKey, trigger.ID),
			attribute.String(otelhelper.WorkerIDKey, r.workerID))

		defer func() {
			if err != nil {
				otelhelper.SetError(span, err)
			}

			span.End()
		}()
	}

	workflow, err := r.store.WorkflowRepository().GetByID(ctx, trigger.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			r.logger.WarnContext(ctx, "Trigger for unknown workflow dropped",
				"workflow_id", trigger.WorkflowID)

			return nil
		}

		return err
	}

	if workflow.Status != trigger.ToStatus {
		r.logger.InfoContext(ctx, "Stale trigger skipped",
			"workflow_id", workflow.ID,
			"trigger_status", trigger.ToStatus,
			"current_status", workflow.Status,
			"reemission", trigger.Reemission)

		return nil
	}

	return r.run(ctx, workflow)
}

func (r *Runner) run(ctx context.Context, workflow *models.Workflow) error {
	status := workflow.Status
	actor := r.systemActor(workflow)

	// A merged fragment means this step's automation already finished.
	// Re-running it would overwrite output a human may be reviewing.
	if schema.FragmentPresent(status, workflow.WorkflowData) {
		return r.resume(ctx, workflow, actor)
	}

	var fragment map[string]any

	err := retry.Do(ctx, r.logger, r.retryPolicy, func(ctx context.Context) error {
		var genErr error

		fragment, genErr = r.intelligence.GenerateStepData(ctx, status, workflow)

		return genErr
	})
	if err != nil {
		return r.fail(ctx, workflow, fmt.Errorf("step automation failed: %w", err))
	}

	if err := schema.ValidateFragment(status, fragment); err != nil {
		return r.fail(ctx, workflow, err)
	}

	if err := r.store.WorkflowRepository().MergeData(ctx, workflow.ID, fragment); err != nil {
		return err
	}

	if err := r.postProcess(ctx, workflow); err != nil {
		return err
	}

	r.audit.Log(ctx, audit.Entry(actor, models.AuditStepAutomationFinished, models.EntityWorkflow, workflow.ID, workflow.ID, map[string]any{
		"step": string(status),
	}))

	if _, gated := models.StepApprovalType(status); gated {
		r.logger.InfoContext(ctx, "Step automation finished, waiting for approval",
			"workflow_id", workflow.ID,
			"step", status)

		return nil
	}

	_, err = r.boundary.TransitionAndTrigger(ctx, workflow.ID, status, actor)
	if err != nil && !flow.IsStateConflict(err) {
		return err
	}

	return nil
}

// resume handles a duplicate trigger for a step whose automation already
// completed. Gated steps keep waiting for their approval; ungated steps
// retry only the advance, which is the part a crash or broker outage can
// have lost.
func (r *Runner) resume(ctx context.Context, workflow *models.Workflow, actor models.Actor) error {
	if _, gated := models.StepApprovalType(workflow.Status); gated {
		r.logger.InfoContext(ctx, "Step already finished, awaiting approval",
			"workflow_id", workflow.ID,
			"step", workflow.Status)

		return nil
	}

	if err := r.postProcess(ctx, workflow); err != nil {
		return err
	}

	_, err := r.boundary.TransitionAndTrigger(ctx, workflow.ID, workflow.Status, actor)
	if err != nil && !flow.IsStateConflict(err) {
		return err
	}

	return nil
}

// postProcess applies step-specific writes beyond the workflow_data merge.
func (r *Runner) postProcess(ctx context.Context, workflow *models.Workflow) error {
	if workflow.Status != models.StatusArticles {
		return nil
	}

	// Queue every approved keyword for article writing.
	keywords, err := r.store.KeywordRepository().ListByWorkflow(ctx, workflow.ID)
	if err != nil {
		return err
	}

	for _, keyword := range keywords {
		if keyword.ArticleStatus != models.ArticleReady {
			continue
		}

		if err := r.store.KeywordRepository().UpdateArticleStatus(ctx, keyword.ID, models.ArticleQueued); err != nil {
			return err
		}
	}

	return nil
}

// fail moves the workflow to the failed terminal state after automation
// exhausted its retries. The handler acks the message; redelivery cannot
// help a permanently failing step.
func (r *Runner) fail(ctx context.Context, workflow *models.Workflow, cause error) error {
	actor := r.systemActor(workflow)

	r.logger.ErrorContext(ctx, "Step automation failed",
		"workflow_id", workflow.ID,
		"step", workflow.Status,
		"error", cause)

	r.audit.Log(ctx, audit.Entry(actor, models.AuditStepAutomationFailed, models.EntityWorkflow, workflow.ID, workflow.ID, map[string]any{
		"step":  string(workflow.Status),
		"error": cause.Error(),
	}))

	if _, err := r.boundary.FailAndNotify(ctx, workflow.ID, workflow.Status, cause.Error(), actor); err != nil {
		if flow.IsStateConflict(err) {
			return nil
		}

		return err
	}

	return nil
}

func (r *Runner) systemActor(workflow *models.Workflow) models.Actor {
	return models.Actor{
		ID:             "system:worker:" + r.workerID,
		OrganizationID: workflow.OrganizationID,
	}
}
