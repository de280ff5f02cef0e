package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/intentflow/intentflow/pkg/models"
)

// AuditRepository stores audit entries append-only; no update or delete API
// exists.
type AuditRepository struct {
	store   *Persistence
	entries []*models.AuditLogEntry
}

func (r *AuditRepository) Append(_ context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		entry.ID = id.String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	stored := *entry

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.entries = append(r.entries, &stored)

	return nil
}

func (r *AuditRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.AuditLogEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var entries []*models.AuditLogEntry

	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].WorkflowID != workflowID {
			continue
		}

		entry := *r.entries[i]
		entries = append(entries, &entry)

		if limit > 0 && len(entries) >= limit {
			break
		}
	}

	return entries, nil
}
