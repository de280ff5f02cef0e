package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

var (
	// ErrStateConflict is returned when the workflow is no longer in the
	// state the caller expected: a stale or duplicate trigger lost the race.
	ErrStateConflict = errors.New("workflow state conflict")

	// ErrTerminalState is returned when a transition is attempted from a
	// completed, failed, or cancelled workflow.
	ErrTerminalState = errors.New("workflow is in a terminal state")

	// ErrUnknownState is returned when the graph has no edge for the
	// expected state.
	ErrUnknownState = errors.New("no transition from state")
)

// TransitionResult describes an applied transition.
type TransitionResult struct {
	WorkflowID string
	From       models.WorkflowStatus
	To         models.WorkflowStatus
	Trigger    string
}

// FSM owns every workflow status write. Nothing else in the codebase updates
// the status column.
type FSM struct {
	graph     Graph
	workflows persistence.WorkflowRepository
	audit     *audit.Logger
	logger    *slog.Logger
}

// NewFSM creates the state machine over the given graph and repository.
func NewFSM(graph Graph, workflows persistence.WorkflowRepository, auditLogger *audit.Logger, logger *slog.Logger) *FSM {
	return &FSM{
		graph:     graph,
		workflows: workflows,
		audit:     auditLogger,
		logger:    logger.With("module", "flow"),
	}
}

// Graph exposes the automation graph for consumers that need trigger lookup
// (the reconciler, the worker).
func (f *FSM) Graph() Graph {
	return f.graph
}

// Transition advances a workflow from expectedFrom to the graph's next state
// via a single compare-and-set write. If the workflow is no longer in
// expectedFrom the call fails with ErrStateConflict and mutates nothing.
// Sending the downstream trigger is deliberately not this function's job;
// see Boundary.TransitionAndTrigger.
func (f *FSM) Transition(ctx context.Context, workflowID string, expectedFrom models.WorkflowStatus, actor models.Actor) (*TransitionResult, error) {
	if expectedFrom.IsTerminal() {
		return nil, fmt.Errorf("cannot transition workflow %s: %w", workflowID, ErrTerminalState)
	}

	edge, ok := f.graph[expectedFrom]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownState, expectedFrom)
	}

	return f.apply(ctx, workflowID, expectedFrom, edge.To, string(edge.Trigger), actor)
}

// Fail moves a workflow to the failed terminal state, guarded by the same
// compare-and-set as a forward transition.
func (f *FSM) Fail(ctx context.Context, workflowID string, expectedFrom models.WorkflowStatus, reason string, actor models.Actor) (*TransitionResult, error) {
	if expectedFrom.IsTerminal() {
		return nil, fmt.Errorf("cannot fail workflow %s: %w", workflowID, ErrTerminalState)
	}

	result, err := f.apply(ctx, workflowID, expectedFrom, models.StatusFailed, "", actor)
	if err != nil {
		return nil, err
	}

	f.audit.Log(ctx, audit.Entry(actor, models.AuditWorkflowFailed, models.EntityWorkflow, workflowID, workflowID, map[string]any{
		"reason": reason,
	}))

	return result, nil
}

// Cancel moves a workflow to the cancelled terminal state.
func (f *FSM) Cancel(ctx context.Context, workflowID string, expectedFrom models.WorkflowStatus, reason string, actor models.Actor) (*TransitionResult, error) {
	if expectedFrom.IsTerminal() {
		return nil, fmt.Errorf("cannot cancel workflow %s: %w", workflowID, ErrTerminalState)
	}

	result, err := f.apply(ctx, workflowID, expectedFrom, models.StatusCancelled, "", actor)
	if err != nil {
		return nil, err
	}

	f.audit.Log(ctx, audit.Entry(actor, models.AuditWorkflowCancelled, models.EntityWorkflow, workflowID, workflowID, map[string]any{
		"reason": reason,
	}))

	return result, nil
}

func (f *FSM) apply(ctx context.Context, workflowID string, from, to models.WorkflowStatus, trigger string, actor models.Actor) (*TransitionResult, error) {
	applied, err := f.workflows.UpdateStatus(ctx, workflowID, from, to)
	if err != nil {
		return nil, err
	}

	if !applied {
		f.logger.WarnContext(ctx, "Transition precondition failed",
			"workflow_id", workflowID,
			"expected_from", from,
			"to", to)

		return nil, fmt.Errorf("workflow %s is not in state %q: %w", workflowID, from, ErrStateConflict)
	}

	f.logger.InfoContext(ctx, "Workflow transitioned",
		"workflow_id", workflowID,
		"from", from,
		"to", to,
		"actor_id", actor.ID)

	f.audit.Log(ctx, audit.Entry(actor, models.AuditStatusTransitioned, models.EntityWorkflow, workflowID, workflowID, map[string]any{
		"from": string(from),
		"to":   string(to),
	}))

	return &TransitionResult{
		WorkflowID: workflowID,
		From:       from,
		To:         to,
		Trigger:    trigger,
	}, nil
}

// IsStateConflict checks whether an error is a lost transition race.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateConflict)
}
