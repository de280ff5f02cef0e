package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

type workflowRecord struct {
	workflow models.Workflow
	data     map[string]any
}

// WorkflowRepository stores workflows in a map guarded by the shared lock.
type WorkflowRepository struct {
	store     *Persistence
	workflows map[string]*workflowRecord
}

func cloneWorkflow(rec *workflowRecord) *models.Workflow {
	w := rec.workflow

	if rec.data != nil {
		w.WorkflowData = make(map[string]any, len(rec.data))
		for k, v := range rec.data {
			w.WorkflowData[k] = v
		}
	}

	return &w
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.workflows[id]
	if !ok || rec.workflow.DeletedAt != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return cloneWorkflow(rec), nil
}

func (r *WorkflowRepository) List(_ context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	filtered := make([]*models.Workflow, 0)

	for _, rec := range r.workflows {
		if rec.workflow.DeletedAt != nil {
			continue
		}

		if opts.OrganizationID != "" && rec.workflow.OrganizationID != opts.OrganizationID {
			continue
		}

		if opts.Status != nil && rec.workflow.Status != *opts.Status {
			continue
		}

		filtered = append(filtered, cloneWorkflow(rec))
	}

	sortWorkflows(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))

	start := opts.Offset
	if start > len(filtered) {
		start = len(filtered)
	}

	end := start + opts.Limit
	if end > len(filtered) {
		end = len(filtered)
	}

	return &persistence.WorkflowListResult{
		Workflows:   filtered[start:end],
		TotalCount:  totalCount,
		HasNextPage: int64(end) < totalCount,
	}, nil
}

func sortWorkflows(workflows []*models.Workflow, sortBy, sortOrder string) {
	sort.SliceStable(workflows, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "name":
			less = strings.ToLower(workflows[i].Name) < strings.ToLower(workflows[j].Name)
		case "updated_at":
			less = workflows[i].UpdatedAt.Before(workflows[j].UpdatedAt)
		default:
			less = workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewWorkflowError("Save", "", err)
		}

		workflow.ID = id.String()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec := &workflowRecord{workflow: *workflow}

	if workflow.WorkflowData != nil {
		rec.data = make(map[string]any, len(workflow.WorkflowData))
		for k, v := range workflow.WorkflowData {
			rec.data[k] = v
		}
	}

	r.workflows[workflow.ID] = rec

	return nil
}

func (r *WorkflowRepository) UpdateStatus(_ context.Context, id string, from, to models.WorkflowStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.workflows[id]
	if !ok || rec.workflow.DeletedAt != nil {
		return false, persistence.NewWorkflowError("UpdateStatus", id, persistence.ErrWorkflowNotFound)
	}

	if rec.workflow.Status != from {
		return false, nil
	}

	rec.workflow.Status = to
	rec.workflow.UpdatedAt = time.Now().UTC()

	return true, nil
}

func (r *WorkflowRepository) MergeData(_ context.Context, id string, fragment map[string]any) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.workflows[id]
	if !ok || rec.workflow.DeletedAt != nil {
		return persistence.NewWorkflowError("MergeData", id, persistence.ErrWorkflowNotFound)
	}

	if rec.data == nil {
		rec.data = make(map[string]any, len(fragment))
	}

	for k, v := range fragment {
		rec.data[k] = v
	}

	rec.workflow.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *WorkflowRepository) ListStale(_ context.Context, updatedBefore time.Time) ([]*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var stale []*models.Workflow

	for _, rec := range r.workflows {
		if rec.workflow.DeletedAt != nil || rec.workflow.Status.IsTerminal() {
			continue
		}

		if rec.workflow.UpdatedAt.Before(updatedBefore) {
			stale = append(stale, cloneWorkflow(rec))
		}
	}

	slices.SortFunc(stale, func(a, b *models.Workflow) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})

	return stale, nil
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.workflows[id]
	if !ok || rec.workflow.DeletedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	rec.workflow.DeletedAt = &now

	return nil
}
