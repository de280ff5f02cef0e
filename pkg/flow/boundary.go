package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/eventbus"
	"github.com/intentflow/intentflow/pkg/events"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/retry"
)

// ErrTriggerEmission is returned when a transition was applied but the
// downstream trigger could not be published after exhausting retries. The
// workflow sits in its new state with no worker scheduled until the
// reconciler re-emits the trigger.
var ErrTriggerEmission = errors.New("trigger emission failed")

// Boundary couples a state transition to the emission of the next step's
// trigger. The two are not atomic: the transition commits first, then the
// trigger is published with retries. Emission failure is loud and audited
// rather than rolled back.
type Boundary struct {
	fsm         *FSM
	publisher   eventbus.EventPublisher
	audit       *audit.Logger
	retryPolicy retry.Policy
	logger      *slog.Logger
}

// NewBoundary creates the transition boundary.
func NewBoundary(fsm *FSM, publisher eventbus.EventPublisher, auditLogger *audit.Logger, retryPolicy retry.Policy, logger *slog.Logger) *Boundary {
	return &Boundary{
		fsm:         fsm,
		publisher:   publisher,
		audit:       auditLogger,
		retryPolicy: retryPolicy,
		logger:      logger.With("module", "flow"),
	}
}

// FSM exposes the underlying state machine.
func (b *Boundary) FSM() *FSM {
	return b.fsm
}

// TransitionAndTrigger advances the workflow and publishes the trigger for
// the state it entered. When two callers race, exactly one transition wins;
// the loser gets ErrStateConflict and emits nothing.
func (b *Boundary) TransitionAndTrigger(ctx context.Context, workflowID string, expectedFrom models.WorkflowStatus, actor models.Actor) (*TransitionResult, error) {
	result, err := b.fsm.Transition(ctx, workflowID, expectedFrom, actor)
	if err != nil {
		return nil, err
	}

	event := b.eventFor(result, actor)

	if err := b.emit(ctx, workflowID, event, actor); err != nil {
		return result, err
	}

	return result, nil
}

// EmitEntryTrigger publishes the first step's trigger for a freshly created
// workflow. No transition is involved; the workflow is already in the entry
// state.
func (b *Boundary) EmitEntryTrigger(ctx context.Context, workflowID string, actor models.Actor) error {
	event := events.StepTrigger{
		BaseEvent: events.NewBaseEvent(EntryTrigger, workflowID),
		ToStatus:  models.StatusICP,
		ActorID:   actor.ID,
	}

	return b.emit(ctx, workflowID, event, actor)
}

// FailAndNotify moves the workflow to failed and announces it on the bus.
func (b *Boundary) FailAndNotify(ctx context.Context, workflowID string, expectedFrom models.WorkflowStatus, reason string, actor models.Actor) (*TransitionResult, error) {
	result, err := b.fsm.Fail(ctx, workflowID, expectedFrom, reason, actor)
	if err != nil {
		return nil, err
	}

	event := events.WorkflowFailed{
		BaseEvent: events.NewBaseEvent(events.WorkflowFailedEvent, workflowID),
		Error:     reason,
	}

	if err := b.emit(ctx, workflowID, event, actor); err != nil {
		return result, err
	}

	return result, nil
}

// CancelAndNotify moves the workflow to cancelled and announces it on the
// bus.
func (b *Boundary) CancelAndNotify(ctx context.Context, workflowID string, expectedFrom models.WorkflowStatus, reason string, actor models.Actor) (*TransitionResult, error) {
	result, err := b.fsm.Cancel(ctx, workflowID, expectedFrom, reason, actor)
	if err != nil {
		return nil, err
	}

	event := events.WorkflowCancelled{
		BaseEvent:   events.NewBaseEvent(events.WorkflowCancelledEvent, workflowID),
		CancelledBy: actor.ID,
		Reason:      reason,
	}

	if err := b.emit(ctx, workflowID, event, actor); err != nil {
		return result, err
	}

	return result, nil
}

func (b *Boundary) eventFor(result *TransitionResult, actor models.Actor) eventbus.Event {
	if result.To == models.StatusCompleted {
		return events.WorkflowCompleted{
			BaseEvent: events.NewBaseEvent(events.WorkflowCompletedEvent, result.WorkflowID),
		}
	}

	return events.StepTrigger{
		BaseEvent:  events.NewBaseEvent(events.EventType(result.Trigger), result.WorkflowID),
		FromStatus: result.From,
		ToStatus:   result.To,
		ActorID:    actor.ID,
	}
}

func (b *Boundary) emit(ctx context.Context, workflowID string, event eventbus.Event, actor models.Actor) error {
	err := retry.Do(ctx, b.logger, b.retryPolicy, func(ctx context.Context) error {
		// Broker errors are treated as transient regardless of shape.
		if err := b.publisher.Publish(ctx, workflowID, event); err != nil {
			return retry.MarkRetryable(err)
		}

		return nil
	})
	if err != nil {
		b.logger.ErrorContext(ctx, "Trigger emission exhausted retries",
			"workflow_id", workflowID,
			"event_type", event.GetType(),
			"error", err)

		b.audit.Log(ctx, audit.Entry(actor, models.AuditTriggerEmissionFailed, models.EntityWorkflow, workflowID, workflowID, map[string]any{
			"event_type": string(event.GetType()),
			"error":      err.Error(),
		}))

		return fmt.Errorf("%w for workflow %s: %v", ErrTriggerEmission, workflowID, err)
	}

	b.audit.Log(ctx, audit.Entry(actor, models.AuditTriggerEmitted, models.EntityWorkflow, workflowID, workflowID, map[string]any{
		"event_type": string(event.GetType()),
	}))

	return nil
}
