package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/intentflow/intentflow/pkg/models"
)

// AuditRepository appends to and reads from the append-only audit log. No
// update or delete statements exist for this table.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate audit entry ID: %w", err)
		}

		entry.ID = id.String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, organization_id, workflow_id, entity_type, entity_id, actor_id, action, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.OrganizationID,
		entry.WorkflowID,
		entry.EntityType,
		entry.EntityID,
		entry.ActorID,
		entry.Action,
		detailsJSON,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

func (r *AuditRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, organization_id, workflow_id, entity_type, entity_id, actor_id, action, details, ip_address, user_agent, created_at
		FROM audit_log
		WHERE workflow_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var entries []*models.AuditLogEntry

	for rows.Next() {
		var (
			entry       models.AuditLogEntry
			detailsJSON []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.OrganizationID,
			&entry.WorkflowID,
			&entry.EntityType,
			&entry.EntityID,
			&entry.ActorID,
			&entry.Action,
			&detailsJSON,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if detailsJSON != nil {
			err := json.Unmarshal(detailsJSON, &entry.Details)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
