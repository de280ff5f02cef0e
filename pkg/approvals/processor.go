// Package approvals records human approve/reject decisions and advances the
// workflow when the last outstanding approval for a step lands.
package approvals

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/flow"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

// Request is a single approve/reject submission.
type Request struct {
	Decision models.Decision `json:"decision" validate:"required,oneof=approved rejected"`
	Feedback string          `json:"feedback,omitempty"`
}

// Response reports the recorded decision and whether it advanced the
// workflow.
type Response struct {
	EntityID         string                `json:"entity_id"`
	EntityType       models.EntityType     `json:"entity_type"`
	ApprovalType     models.ApprovalType   `json:"approval_type"`
	Decision         models.Decision       `json:"decision"`
	WorkflowID       string                `json:"workflow_id"`
	WorkflowAdvanced bool                  `json:"workflow_advanced"`
	WorkflowStatus   models.WorkflowStatus `json:"workflow_status"`
}

// approvalSteps maps each workflow-level approval type to the step it
// unlocks.
var approvalSteps = map[models.ApprovalType]models.WorkflowStatus{
	models.ApprovalICP:          models.StatusICP,
	models.ApprovalCompetitors:  models.StatusCompetitors,
	models.ApprovalSeedKeywords: models.StatusKeywords,
	models.ApprovalLongtails:    models.StatusLongtails,
	models.ApprovalSubtopics:    models.StatusSubtopics,
}

// Processor applies approval decisions. It fails closed: any uncertainty
// (authorization, wrong state, storage error) rejects the mutation.
type Processor struct {
	workflows persistence.WorkflowRepository
	keywords  persistence.KeywordRepository
	approvals persistence.ApprovalRepository
	boundary  *flow.Boundary
	audit     *audit.Logger
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewProcessor creates the approval processor.
func NewProcessor(store persistence.Persistence, boundary *flow.Boundary, auditLogger *audit.Logger, logger *slog.Logger) *Processor {
	return &Processor{
		workflows: store.WorkflowRepository(),
		keywords:  store.KeywordRepository(),
		approvals: store.ApprovalRepository(),
		boundary:  boundary,
		audit:     auditLogger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With("module", "approvals"),
	}
}

// ProcessWorkflowApproval records a workflow-level decision (ICP,
// competitors, seed keywords, longtails). The workflow must sit at the step
// the approval type unlocks. An approved decision advances the workflow
// through the transition boundary; re-submitting the same decision is
// idempotent, and when two approvals race only one transition wins.
func (p *Processor) ProcessWorkflowApproval(ctx context.Context, workflowID string, approvalType models.ApprovalType, request Request, actor models.Actor) (*Response, error) {
	const op = "ProcessWorkflowApproval"

	if err := p.validate.Struct(request); err != nil {
		return nil, newProcessError(op, workflowID, err)
	}

	step, ok := approvalSteps[approvalType]
	if !ok || approvalType == models.ApprovalSubtopics {
		// Subtopics decisions are per keyword; the workflow-level record
		// is written by the cascade, never submitted directly.
		return nil, newProcessError(op, workflowID, ErrUnknownApprovalType)
	}

	workflow, err := p.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, newProcessError(op, workflowID, err)
	}

	if err := p.authorize(actor, workflow.OrganizationID); err != nil {
		return nil, newProcessError(op, workflowID, err)
	}

	if workflow.Status != step {
		return nil, newProcessError(op, workflowID, ErrWrongState)
	}

	if err := p.record(ctx, workflowID, models.EntityWorkflow, approvalType, request, actor, workflowID); err != nil {
		return nil, newProcessError(op, workflowID, err)
	}

	response := &Response{
		EntityID:       workflowID,
		EntityType:     models.EntityWorkflow,
		ApprovalType:   approvalType,
		Decision:       request.Decision,
		WorkflowID:     workflowID,
		WorkflowStatus: workflow.Status,
	}

	if request.Decision != models.DecisionApproved {
		return response, nil
	}

	advanced, newStatus, err := p.advance(ctx, workflowID, step, actor)
	if err != nil {
		return response, newProcessError(op, workflowID, err)
	}

	response.WorkflowAdvanced = advanced
	if advanced {
		response.WorkflowStatus = newStatus
	}

	return response, nil
}

// ProcessKeywordSubtopics records a per-keyword subtopics decision. The
// keyword's subtopics must be fully generated first. Approval marks the
// keyword's article ready; rejection resets it. When the last keyword in
// the workflow becomes ready, the cascade writes the workflow-level
// subtopics approval and advances the workflow.
func (p *Processor) ProcessKeywordSubtopics(ctx context.Context, keywordID string, request Request, actor models.Actor) (*Response, error) {
	const op = "ProcessKeywordSubtopics"

	if err := p.validate.Struct(request); err != nil {
		return nil, newProcessError(op, keywordID, err)
	}

	keyword, err := p.keywords.GetByID(ctx, keywordID)
	if err != nil {
		return nil, newProcessError(op, keywordID, err)
	}

	workflow, err := p.workflows.GetByID(ctx, keyword.WorkflowID)
	if err != nil {
		return nil, newProcessError(op, keywordID, err)
	}

	if err := p.authorize(actor, workflow.OrganizationID); err != nil {
		return nil, newProcessError(op, keywordID, err)
	}

	if workflow.Status.IsTerminal() {
		return nil, newProcessError(op, keywordID, ErrWrongState)
	}

	if keyword.SubtopicsStatus != models.SubtopicsComplete {
		return nil, newProcessError(op, keywordID, ErrWrongState)
	}

	articleStatus := models.ArticleReady
	if request.Decision != models.DecisionApproved {
		articleStatus = models.ArticleNotStarted
	}

	if err := p.keywords.UpdateArticleStatus(ctx, keywordID, articleStatus); err != nil {
		return nil, newProcessError(op, keywordID, err)
	}

	if err := p.record(ctx, keywordID, models.EntityKeyword, models.ApprovalSubtopics, request, actor, workflow.ID); err != nil {
		return nil, newProcessError(op, keywordID, err)
	}

	response := &Response{
		EntityID:       keywordID,
		EntityType:     models.EntityKeyword,
		ApprovalType:   models.ApprovalSubtopics,
		Decision:       request.Decision,
		WorkflowID:     workflow.ID,
		WorkflowStatus: workflow.Status,
	}

	if request.Decision != models.DecisionApproved {
		return response, nil
	}

	advanced, newStatus, err := p.cascadeSubtopics(ctx, workflow, actor)
	if err != nil {
		return response, newProcessError(op, keywordID, err)
	}

	response.WorkflowAdvanced = advanced
	if advanced {
		response.WorkflowStatus = newStatus
	}

	return response, nil
}

// cascadeSubtopics checks whether the approved keyword was the last one
// outstanding. The read is racy by nature; correctness comes from the
// compare-and-set transition, which lets exactly one of two racing
// cascades through.
func (p *Processor) cascadeSubtopics(ctx context.Context, workflow *models.Workflow, actor models.Actor) (bool, models.WorkflowStatus, error) {
	if workflow.Status != models.StatusSubtopics {
		return false, "", nil
	}

	notReady, err := p.keywords.CountNotReady(ctx, workflow.ID)
	if err != nil {
		return false, "", err
	}

	if notReady > 0 {
		return false, "", nil
	}

	workflowApproval := &models.Approval{
		EntityID:     workflow.ID,
		EntityType:   models.EntityWorkflow,
		ApprovalType: models.ApprovalSubtopics,
		Decision:     models.DecisionApproved,
		ApproverID:   actor.ID,
	}
	if err := p.approvals.Upsert(ctx, workflowApproval); err != nil {
		return false, "", err
	}

	return p.advance(ctx, workflow.ID, models.StatusSubtopics, actor)
}

func (p *Processor) advance(ctx context.Context, workflowID string, from models.WorkflowStatus, actor models.Actor) (bool, models.WorkflowStatus, error) {
	result, err := p.boundary.TransitionAndTrigger(ctx, workflowID, from, actor)
	if err != nil {
		if flow.IsStateConflict(err) {
			// A concurrent approval already advanced the workflow.
			p.logger.InfoContext(ctx, "Cascade lost transition race",
				"workflow_id", workflowID,
				"from", from)

			return false, "", nil
		}

		return false, "", err
	}

	return true, result.To, nil
}

func (p *Processor) record(ctx context.Context, entityID string, entityType models.EntityType, approvalType models.ApprovalType, request Request, actor models.Actor, workflowID string) error {
	approval := &models.Approval{
		EntityID:     entityID,
		EntityType:   entityType,
		ApprovalType: approvalType,
		Decision:     request.Decision,
		ApproverID:   actor.ID,
		Feedback:     request.Feedback,
	}

	if err := p.approvals.Upsert(ctx, approval); err != nil {
		return err
	}

	p.audit.Log(ctx, audit.Entry(actor, models.AuditApprovalRecorded, entityType, entityID, workflowID, map[string]any{
		"approval_type": string(approvalType),
		"decision":      string(request.Decision),
		"feedback":      request.Feedback,
	}))

	return nil
}

func (p *Processor) authorize(actor models.Actor, organizationID string) error {
	if !actor.CanApprove() || actor.OrganizationID != organizationID {
		return ErrForbidden
	}

	return nil
}
