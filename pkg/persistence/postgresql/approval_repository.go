package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

// ApprovalRepository handles approval record database operations. The table's
// composite primary key carries the uniqueness invariant; Upsert leans on it.
type ApprovalRepository struct {
	db *sql.DB
}

// NewApprovalRepository creates a new approval repository.
func NewApprovalRepository(db *sql.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) Get(ctx context.Context, entityID string, entityType models.EntityType, approvalType models.ApprovalType) (*models.Approval, error) {
	query := `
		SELECT entity_id, entity_type, approval_type, decision, approver_id, feedback, created_at, updated_at
		FROM approvals
		WHERE entity_id = $1 AND entity_type = $2 AND approval_type = $3
	`

	var approval models.Approval

	err := r.db.QueryRowContext(ctx, query, entityID, entityType, approvalType).Scan(
		&approval.EntityID,
		&approval.EntityType,
		&approval.ApprovalType,
		&approval.Decision,
		&approval.ApproverID,
		&approval.Feedback,
		&approval.CreatedAt,
		&approval.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrApprovalNotFound
		}

		return nil, fmt.Errorf("failed to scan approval: %w", err)
	}

	return &approval, nil
}

func (r *ApprovalRepository) Upsert(ctx context.Context, approval *models.Approval) error {
	now := time.Now().UTC()

	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = now
	}

	approval.UpdatedAt = now

	query := `
		INSERT INTO approvals (entity_id, entity_type, approval_type, decision, approver_id, feedback, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entity_id, entity_type, approval_type) DO UPDATE SET
			decision = EXCLUDED.decision,
			approver_id = EXCLUDED.approver_id,
			feedback = EXCLUDED.feedback,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		approval.EntityID,
		approval.EntityType,
		approval.ApprovalType,
		approval.Decision,
		approval.ApproverID,
		approval.Feedback,
		approval.CreatedAt,
		approval.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert approval: %w", err)
	}

	return nil
}
