package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/intentflow/intentflow/pkg/audit"
	"github.com/intentflow/intentflow/pkg/flow"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
	"github.com/intentflow/intentflow/pkg/progress"
)

// Workflow is the application service for workflow lifecycle operations.
type Workflow struct {
	persistence persistence.Persistence
	boundary    *flow.Boundary
	audit       *audit.Logger
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(store persistence.Persistence, boundary *flow.Boundary, auditLogger *audit.Logger, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence: store,
		boundary:    boundary,
		audit:       auditLogger,
		logger:      logger.With("module", "services"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest holds the inputs for a new intent workflow.
type CreateWorkflowRequest struct {
	Name         string         `json:"name"          validate:"required,min=1,max=200"`
	WorkflowData map[string]any `json:"workflow_data"`
}

// Create persists a new workflow in the first pipeline step and emits its
// entry trigger so automation starts immediately.
func (w *Workflow) Create(ctx context.Context, req CreateWorkflowRequest, actor models.Actor) (*models.Workflow, error) {
	const op = "Create"

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError(op, "NAME_REQUIRED", "workflow name is required", ErrNameRequired)
	}

	if actor.OrganizationID == "" {
		return nil, NewValidationError(op, "ORGANIZATION_REQUIRED", "actor has no organization", ErrOrganizationMissing)
	}

	workflow := &models.Workflow{
		OrganizationID: actor.OrganizationID,
		Name:           name,
		Status:         models.StatusICP,
		CreatedBy:      actor.ID,
		WorkflowData:   req.WorkflowData,
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.audit.Log(ctx, audit.Entry(actor, models.AuditWorkflowCreated, models.EntityWorkflow, workflow.ID, workflow.ID, map[string]any{
		"name": workflow.Name,
	}))

	if err := w.boundary.EmitEntryTrigger(ctx, workflow.ID, actor); err != nil {
		// The workflow exists; the reconciler will re-emit the trigger.
		w.logger.ErrorContext(ctx, "Entry trigger emission failed",
			"workflow_id", workflow.ID,
			"error", err)
	}

	return workflow, nil
}

// FetchByID retrieves a workflow scoped to the actor's organization. A
// workflow from another organization is indistinguishable from a missing
// one.
func (w *Workflow) FetchByID(ctx context.Context, id string, actor models.Actor) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.OrganizationID != actor.OrganizationID {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`

	Status *models.WorkflowStatus

	SortBy    string `validate:"oneof=created_at updated_at name"`
	SortOrder string `validate:"oneof=asc desc"`
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves the actor's organization's workflows with
// filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest, actor models.Actor) (*ListWorkflowsResponse, error) {
	if err := w.validateListWorkflowsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	opts := persistence.ListWorkflowsOptions{
		Limit:          req.Limit,
		Offset:         req.Offset,
		OrganizationID: actor.OrganizationID,
		Status:         req.Status,
		SortBy:         req.SortBy,
		SortOrder:      req.SortOrder,
	}

	result, err := w.persistence.WorkflowRepository().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	const op = "validateListWorkflowsRequest"

	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "name"}
	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(op, "INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(op, "INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder)
	}

	if req.Status != nil && models.StepNumber(*req.Status) == models.UnknownStep &&
		*req.Status != models.StatusFailed && *req.Status != models.StatusCancelled {
		return NewValidationError(op, "INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *req.Status),
			ErrInvalidStatus)
	}

	return nil
}

// Cancel moves a workflow to the cancelled terminal state. Only owners and
// admins of the owning organization may cancel. The expected-state check is
// retried a few times in case automation advances the workflow mid-call.
func (w *Workflow) Cancel(ctx context.Context, id, reason string, actor models.Actor) (*models.Workflow, error) {
	const attempts = 3

	if !actor.CanApprove() {
		return nil, ErrForbidden
	}

	for range attempts {
		workflow, err := w.FetchByID(ctx, id, actor)
		if err != nil {
			return nil, err
		}

		if workflow.Status.IsTerminal() {
			return nil, ErrWorkflowTerminal
		}

		_, err = w.boundary.CancelAndNotify(ctx, id, workflow.Status, reason, actor)
		if err != nil {
			if flow.IsStateConflict(err) {
				continue
			}

			return nil, err
		}

		return w.FetchByID(ctx, id, actor)
	}

	return nil, ErrWorkflowTerminal
}

// ProgressResponse is the dashboard view of one workflow.
type ProgressResponse struct {
	Progress           *progress.WorkflowProgress `json:"progress"`
	Keywords           progress.KeywordCounts     `json:"keywords"`
	EstimatedRemaining string                     `json:"estimated_remaining,omitempty"`
}

// Progress computes the progress read-model for a workflow from its stored
// state, keywords, and audit trail.
func (w *Workflow) Progress(ctx context.Context, id string, actor models.Actor) (*ProgressResponse, error) {
	workflow, err := w.FetchByID(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	keywords, err := w.persistence.KeywordRepository().ListByWorkflow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load keywords: %w", err)
	}

	response := &ProgressResponse{
		Progress: progress.Compute(workflow),
		Keywords: progress.CountKeywords(keywords),
	}

	entries, err := w.persistence.AuditRepository().ListByWorkflow(ctx, id, 200)
	if err != nil {
		// The estimate is optional; the rest of the view still renders.
		w.logger.WarnContext(ctx, "Failed to load audit trail for estimate",
			"workflow_id", id,
			"error", err)

		return response, nil
	}

	if avg, ok := progress.AverageStepDuration(entries); ok {
		if remaining := progress.EstimateRemaining(workflow.Status, avg); remaining > 0 {
			response.EstimatedRemaining = remaining.Round(time.Second).String()
		}
	}

	return response, nil
}
