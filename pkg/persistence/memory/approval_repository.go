package memory

import (
	"context"
	"time"

	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

type approvalKey struct {
	entityID     string
	entityType   models.EntityType
	approvalType models.ApprovalType
}

type approvalRecord struct {
	approval models.Approval
}

// ApprovalRepository stores approvals keyed by their uniqueness triple, so
// upsert semantics fall out of the map write.
type ApprovalRepository struct {
	store     *Persistence
	approvals map[approvalKey]*approvalRecord
}

func (r *ApprovalRepository) Get(_ context.Context, entityID string, entityType models.EntityType, approvalType models.ApprovalType) (*models.Approval, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.approvals[approvalKey{entityID, entityType, approvalType}]
	if !ok {
		return nil, persistence.ErrApprovalNotFound
	}

	approval := rec.approval

	return &approval, nil
}

func (r *ApprovalRepository) Upsert(_ context.Context, approval *models.Approval) error {
	now := time.Now().UTC()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := approvalKey{approval.EntityID, approval.EntityType, approval.ApprovalType}

	if existing, ok := r.approvals[key]; ok {
		approval.CreatedAt = existing.approval.CreatedAt
	} else if approval.CreatedAt.IsZero() {
		approval.CreatedAt = now
	}

	approval.UpdatedAt = now
	r.approvals[key] = &approvalRecord{approval: *approval}

	return nil
}
