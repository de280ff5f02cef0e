// Package gates implements the human-approval gates guarding workflow
// steps. A gate controls a single protected step: before the step it blocks
// as not ready, past the step it allows as no longer required, and at the
// step its verdict depends solely on the matching approval record.
package gates

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

// Outcome is the three-valued gate verdict. Degraded means the gate let the
// caller through because it could not reach storage, not because the
// approval was verified.
type Outcome string

const (
	OutcomeAllowed  Outcome = "allowed"
	OutcomeBlocked  Outcome = "blocked"
	OutcomeDegraded Outcome = "degraded"
)

// Approval status values reported in gate results.
const (
	StatusApproved    = "approved"
	StatusNotApproved = "not_approved"
	StatusNotReady    = "not_ready"
	StatusNotRequired = "not_required"
	StatusNotFound    = "not_found"
	StatusError       = "error"
)

// Result is the structured gate verdict. Blocked results always carry a
// concrete RequiredAction so callers never see a bare forbidden.
type Result struct {
	Gate           models.ApprovalType   `json:"gate"`
	Outcome        Outcome               `json:"outcome"`
	Allowed        bool                  `json:"allowed"`
	ApprovalStatus string                `json:"approval_status"`
	CurrentStatus  models.WorkflowStatus `json:"current_status,omitempty"`
	RequiredStatus models.WorkflowStatus `json:"required_status"`
	RequiredAction string                `json:"required_action,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// Config describes one gate instance.
type Config struct {
	// ApprovalType is the approval record the gate checks.
	ApprovalType models.ApprovalType

	// Protects is the step the workflow must clear through this gate.
	Protects models.WorkflowStatus

	// RequiredAction tells a blocked caller what to do, e.g. the approval
	// endpoint to call.
	RequiredAction string
}

// Gate validates whether a workflow may progress past its protected step.
type Gate struct {
	config    Config
	workflows persistence.WorkflowRepository
	approvals persistence.ApprovalRepository
	audit     *audit.Logger
	logger    *slog.Logger
}

// New creates a gate over the given repositories.
func New(config Config, workflows persistence.WorkflowRepository, approvals persistence.ApprovalRepository, auditLogger *audit.Logger, logger *slog.Logger) *Gate {
	return &Gate{
		config:    config,
		workflows: workflows,
		approvals: approvals,
		audit:     auditLogger,
		logger:    logger.With("module", "gates", "gate", string(config.ApprovalType)),
	}
}

// Type returns the approval type this gate checks.
func (g *Gate) Type() models.ApprovalType {
	return g.config.ApprovalType
}

// Check validates the gate for a workflow. Precondition failures (missing
// workflow, missing approval) block; unexpected storage errors fail open
// with a degraded outcome so an infrastructure blip never halts the
// pipeline. Every verdict is audit-logged best-effort.
func (g *Gate) Check(ctx context.Context, workflowID string, actor models.Actor) *Result {
	workflow, err := g.workflows.GetByID(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return g.finish(ctx, actor, workflowID, &Result{
				Gate:           g.config.ApprovalType,
				Outcome:        OutcomeBlocked,
				ApprovalStatus: StatusNotFound,
				RequiredStatus: g.config.Protects,
				Error:          fmt.Sprintf("workflow %s not found", workflowID),
			})
		}

		return g.degrade(ctx, actor, workflowID, err)
	}

	current := models.StepNumber(workflow.Status)
	protected := models.StepNumber(g.config.Protects)

	if current < protected {
		return g.finish(ctx, actor, workflowID, &Result{
			Gate:           g.config.ApprovalType,
			Outcome:        OutcomeBlocked,
			ApprovalStatus: StatusNotReady,
			CurrentStatus:  workflow.Status,
			RequiredStatus: g.config.Protects,
			RequiredAction: fmt.Sprintf("advance workflow to %s first", g.config.Protects),
		})
	}

	if current > protected {
		return g.finish(ctx, actor, workflowID, &Result{
			Gate:           g.config.ApprovalType,
			Outcome:        OutcomeAllowed,
			Allowed:        true,
			ApprovalStatus: StatusNotRequired,
			CurrentStatus:  workflow.Status,
			RequiredStatus: g.config.Protects,
		})
	}

	approval, err := g.approvals.Get(ctx, workflowID, models.EntityWorkflow, g.config.ApprovalType)

	switch {
	case persistence.IsApprovalNotFound(err):
		return g.finish(ctx, actor, workflowID, &Result{
			Gate:           g.config.ApprovalType,
			Outcome:        OutcomeBlocked,
			ApprovalStatus: StatusNotApproved,
			CurrentStatus:  workflow.Status,
			RequiredStatus: g.config.Protects,
			RequiredAction: g.config.RequiredAction,
		})
	case err != nil:
		return g.degrade(ctx, actor, workflowID, err)
	}

	if approval.Decision != models.DecisionApproved {
		return g.finish(ctx, actor, workflowID, &Result{
			Gate:           g.config.ApprovalType,
			Outcome:        OutcomeBlocked,
			ApprovalStatus: StatusNotApproved,
			CurrentStatus:  workflow.Status,
			RequiredStatus: g.config.Protects,
			RequiredAction: g.config.RequiredAction,
		})
	}

	return g.finish(ctx, actor, workflowID, &Result{
		Gate:           g.config.ApprovalType,
		Outcome:        OutcomeAllowed,
		Allowed:        true,
		ApprovalStatus: StatusApproved,
		CurrentStatus:  workflow.Status,
		RequiredStatus: g.config.Protects,
	})
}

func (g *Gate) degrade(ctx context.Context, actor models.Actor, workflowID string, cause error) *Result {
	g.logger.ErrorContext(ctx, "Gate check degraded, failing open",
		"workflow_id", workflowID,
		"error", cause)

	result := &Result{
		Gate:           g.config.ApprovalType,
		Outcome:        OutcomeDegraded,
		Allowed:        true,
		ApprovalStatus: StatusError,
		RequiredStatus: g.config.Protects,
		Error:          cause.Error(),
	}

	g.audit.Log(ctx, audit.Entry(actor, models.AuditGateDegraded, models.EntityWorkflow, workflowID, workflowID, map[string]any{
		"gate":  string(g.config.ApprovalType),
		"error": cause.Error(),
	}))

	return result
}

func (g *Gate) finish(ctx context.Context, actor models.Actor, workflowID string, result *Result) *Result {
	g.audit.Log(ctx, audit.Entry(actor, models.AuditGateChecked, models.EntityWorkflow, workflowID, workflowID, map[string]any{
		"gate":            string(result.Gate),
		"outcome":         string(result.Outcome),
		"approval_status": result.ApprovalStatus,
	}))

	return result
}
