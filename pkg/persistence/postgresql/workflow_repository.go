package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , organization_id
  , name
  , status
  , created_by
  , workflow_data
  , created_at
  , updated_at
  , deleted_at
`

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1 AND deleted_at IS NULL`

	row := r.db.QueryRowContext(ctx, query, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	sortBy := "created_at"

	switch opts.SortBy {
	case "", "created_at":
	case "updated_at", "name":
		sortBy = opts.SortBy
	default:
		return nil, fmt.Errorf("invalid sort field: %s", opts.SortBy)
	}

	sortOrder := "DESC"
	if opts.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	where := "WHERE deleted_at IS NULL"
	args := []any{}

	if opts.OrganizationID != "" {
		args = append(args, opts.OrganizationID)
		where += fmt.Sprintf(" AND organization_id = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var totalCount int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows "+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf("SELECT %s FROM workflows %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		workflowColumns, where, sortBy, sortOrder, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(workflows)) < totalCount,
	}, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	dataJSON, err := json.Marshal(workflow.WorkflowData)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow data: %w", err)
	}

	query := `
		INSERT INTO workflows (id, organization_id, name, status, created_by, workflow_data, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			workflow_data = EXCLUDED.workflow_data,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.OrganizationID,
		workflow.Name,
		workflow.Status,
		workflow.CreatedBy,
		dataJSON,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// UpdateStatus is the single atomic compare-and-set behind every FSM
// transition. The conditional WHERE makes concurrent transitions race
// safely: at most one caller observes a row change.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, from, to models.WorkflowStatus) (bool, error) {
	query := `
		UPDATE workflows
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, persistence.NewWorkflowError("UpdateStatus", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewWorkflowError("UpdateStatus", id, err)
	}

	return rowsAffected == 1, nil
}

func (r *WorkflowRepository) MergeData(ctx context.Context, id string, fragment map[string]any) error {
	fragmentJSON, err := json.Marshal(fragment)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow data fragment: %w", err)
	}

	query := `
		UPDATE workflows
		SET workflow_data = workflow_data || $1::jsonb, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, fragmentJSON, id)
	if err != nil {
		return persistence.NewWorkflowError("MergeData", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("MergeData", id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("MergeData", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) ListStale(ctx context.Context, updatedBefore time.Time) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		  AND status NOT IN ('completed', 'failed', 'cancelled')
		  AND updated_at < $1
		ORDER BY updated_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating stale workflows: %w", err)
	}

	return workflows, nil
}

// Delete soft deletes a workflow by setting deleted_at.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

func scanWorkflow(scanner interface {
	Scan(dest ...any) error
}) (*models.Workflow, error) {
	var (
		workflow models.Workflow
		dataJSON []byte
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.OrganizationID,
		&workflow.Name,
		&workflow.Status,
		&workflow.CreatedBy,
		&dataJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if dataJSON != nil {
		err := json.Unmarshal(dataJSON, &workflow.WorkflowData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow data: %w", err)
		}
	}

	return &workflow, nil
}
