// Package web provides the HTTP handlers for the intent workflow REST API.
// Authentication happens upstream; requests arrive with resolved identity
// headers that the handlers turn into an actor.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/intentflow/intentflow/pkg/approvals"
	"github.com/intentflow/intentflow/pkg/cache"
	"github.com/intentflow/intentflow/pkg/clusters"
	"github.com/intentflow/intentflow/pkg/gates"
	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
	"github.com/intentflow/intentflow/pkg/services"
)

// Identity headers set by the upstream auth proxy.
const (
	HeaderUserID         = "X-User-Id"
	HeaderOrganizationID = "X-Organization-Id"
	HeaderRole           = "X-Role"
)

// progressCacheTTL bounds how long a progress view may lag the workflow.
// Mutations through the API invalidate eagerly; the TTL covers changes made
// by the worker.
const progressCacheTTL = 15 * time.Second

type APIHandlers struct {
	workflowService  *services.Workflow
	processor        *approvals.Processor
	gates            map[models.ApprovalType]*gates.Gate
	clusterValidator *clusters.Validator
	limiter          *cache.Limiter
	progressCache    *cache.Cache
	validator        *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	processor *approvals.Processor,
	gateSet map[models.ApprovalType]*gates.Gate,
	clusterValidator *clusters.Validator,
	limiter *cache.Limiter,
	progressCache *cache.Cache,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		processor:        processor,
		gates:            gateSet,
		clusterValidator: clusterValidator,
		limiter:          limiter,
		progressCache:    progressCache,
		validator:        validator,
	}
}

// progressKey scopes cached progress views by organization so one tenant can
// never serve another tenant's view.
func progressKey(organizationID, workflowID string) string {
	return "progress:" + organizationID + ":" + workflowID
}

func (h *APIHandlers) actor(c fiber.Ctx) (models.Actor, bool) {
	userID := c.Get(HeaderUserID)
	orgID := c.Get(HeaderOrganizationID)

	if userID == "" || orgID == "" {
		return models.Actor{}, false
	}

	role := models.Role(c.Get(HeaderRole))
	if role == "" {
		role = models.RoleMember
	}

	return models.Actor{
		ID:             userID,
		OrganizationID: orgID,
		Role:           role,
		IPAddress:      c.IP(),
		UserAgent:      c.Get(fiber.HeaderUserAgent),
	}, true
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Intentflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Intentflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return unauthorized(c, "missing identity headers")
	}

	req, err := h.parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

func (h *APIHandlers) parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		req.Status = &status
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return unauthorized(c, "missing identity headers")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id, actor)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return unauthorized(c, "missing identity headers")
	}

	allowed, err := h.limiter.Allow(c.Context(), actor.OrganizationID)
	if err == nil && !allowed {
		return tooManyRequests(c, "workflow creation rate limit exceeded")
	}

	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), services.CreateWorkflowRequest{
		Name:         req.Name,
		WorkflowData: req.WorkflowData,
	}, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) CancelWorkflow(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return unauthorized(c, "missing identity headers")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req CancelWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	workflow, err := h.workflowService.Cancel(c.Context(), id, req.Reason, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	_ = h.progressCache.Invalidate(c.Context(), progressKey(actor.OrganizationID, id))

	return c.JSON(workflow)
}

func (h *APIHandlers) GetProgress(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return unauthorized(c, "missing identity headers")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	key := progressKey(actor.OrganizationID, id)

	var cached services.ProgressResponse
	if hit, err := h.progressCache.GetJSON(c.Context(), key, &cached); err == nil && hit {
		return c.JSON(cached)
	}

	view, err := h.workflowService.Progress(c.Context(), id, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	_ = h.progressCache.SetJSON(c.Context(), key, view, progressCacheTTL)

	return c.JSON(view)
}

// CheckGate returns the gate verdict for a workflow without mutating
// anything. Blocked verdicts respond 200 with allowed=false; the verdict is
// the payload, not an HTTP error.
func (h *APIHandlers) CheckGate(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return unauthorized(c, "missing identity headers")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	gate, ok := h.gates[models.ApprovalType(c.Params("type"))]
	if !ok {
		return badRequest(c, "Unknown gate type")
	}

	// Tenant scoping happens before the gate sees the workflow.
	if _, err := h.workflowService.FetchByID(c.Context(), id, actor); err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(gate.Check(c.Context(), id, actor))
}

func (h *APIHandlers) ProcessWorkflowApproval(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return unauthorized(c, "missing identity headers")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ApprovalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	response, err := h.processor.ProcessWorkflowApproval(c.Context(), id,
		models.ApprovalType(c.Params("type")),
		approvals.Request{Decision: models.Decision(req.Decision), Feedback: req.Feedback},
		actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	_ = h.progressCache.Invalidate(c.Context(), progressKey(actor.OrganizationID, response.WorkflowID))

	return c.JSON(response)
}

func (h *APIHandlers) ProcessKeywordApproval(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return unauthorized(c, "missing identity headers")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Keyword ID is required")
	}

	var req ApprovalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	response, err := h.processor.ProcessKeywordSubtopics(c.Context(), id,
		approvals.Request{Decision: models.Decision(req.Decision), Feedback: req.Feedback},
		actor)
	if err != nil {
		if persistence.IsKeywordNotFound(err) {
			return notFound(c, "Keyword not found")
		}

		return handleServiceError(c, err)
	}

	_ = h.progressCache.Invalidate(c.Context(), progressKey(actor.OrganizationID, response.WorkflowID))

	return c.JSON(response)
}

func (h *APIHandlers) ValidateClusters(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return unauthorized(c, "missing identity headers")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.workflowService.FetchByID(c.Context(), id, actor); err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	report, err := h.clusterValidator.ValidateWorkflowClusters(c.Context(), id, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}
