// Package persistence defines the storage abstraction for workflows,
// keywords, clusters, approvals, and the audit log.
package persistence

import (
	"context"
	"time"

	"github.com/intentflow/intentflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	KeywordRepository() KeywordRepository
	ClusterRepository() ClusterRepository
	ApprovalRepository() ApprovalRepository
	AuditRepository() AuditRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters and paginates workflow listings.
type ListWorkflowsOptions struct {
	Limit          int
	Offset         int
	OrganizationID string
	Status         *models.WorkflowStatus
	SortBy         string
	SortOrder      string
}

// WorkflowListResult carries one page of workflows plus paging metadata.
type WorkflowListResult struct {
	Workflows   []*models.Workflow
	TotalCount  int64
	HasNextPage bool
}

type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	Save(ctx context.Context, workflow *models.Workflow) error

	// UpdateStatus performs a compare-and-set status transition: the write
	// applies only if the row is still in the expected status. Returns false
	// with no error when the precondition did not hold.
	UpdateStatus(ctx context.Context, id string, from, to models.WorkflowStatus) (bool, error)

	// MergeData merges a JSON fragment into the workflow's accumulated
	// workflow_data payload.
	MergeData(ctx context.Context, id string, fragment map[string]any) error

	// ListStale returns non-terminal workflows whose last update is older
	// than the cutoff, for the reconciliation sweep.
	ListStale(ctx context.Context, updatedBefore time.Time) ([]*models.Workflow, error)

	Delete(ctx context.Context, id string) error
}

type KeywordRepository interface {
	GetByID(ctx context.Context, id string) (*models.Keyword, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Keyword, error)
	Save(ctx context.Context, keyword *models.Keyword) error
	UpdateArticleStatus(ctx context.Context, id string, status models.ArticleStatus) error
	UpdateSubtopics(ctx context.Context, id string, subtopics []string, status models.SubtopicsStatus) error

	// CountNotReady returns how many of the workflow's keywords still lack a
	// ready article status, for the cascading approval check.
	CountNotReady(ctx context.Context, workflowID string) (int, error)
}

type ClusterRepository interface {
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.TopicCluster, error)
	ListByHub(ctx context.Context, workflowID, hubKeywordID string) ([]*models.TopicCluster, error)
	SaveBatch(ctx context.Context, clusters []*models.TopicCluster) error
	AnnotateValidation(ctx context.Context, workflowID, hubKeywordID string, valid bool) error
}

type ApprovalRepository interface {
	Get(ctx context.Context, entityID string, entityType models.EntityType, approvalType models.ApprovalType) (*models.Approval, error)

	// Upsert writes the approval keyed by (entity_id, entity_type,
	// approval_type), overwriting any prior decision.
	Upsert(ctx context.Context, approval *models.Approval) error
}

type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.AuditLogEntry, error)
}
