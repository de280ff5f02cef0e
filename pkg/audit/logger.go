// Package audit provides the append-only intent audit logger. Writes are
// best-effort: a failed audit write is logged and swallowed, never
// propagated, so the primary operation is never blocked by its own paper
// trail.
package audit

import (
	"context"
	"log/slog"

	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/persistence"
)

// Logger records state-affecting events to the audit repository.
type Logger struct {
	repo   persistence.AuditRepository
	logger *slog.Logger
}

// NewLogger creates an audit logger over the given repository.
func NewLogger(repo persistence.AuditRepository, logger *slog.Logger) *Logger {
	return &Logger{
		repo:   repo,
		logger: logger.With("module", "audit"),
	}
}

// Log appends an entry. Any storage failure is recorded on the process log
// and discarded; callers treat this as fire-and-forget.
func (l *Logger) Log(ctx context.Context, entry *models.AuditLogEntry) {
	err := l.repo.Append(ctx, entry)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to write audit entry",
			"action", entry.Action,
			"workflow_id", entry.WorkflowID,
			"entity_id", entry.EntityID,
			"error", err)
	}
}

// Entry is a convenience constructor filling actor-derived fields.
func Entry(actor models.Actor, action models.AuditAction, entityType models.EntityType, entityID, workflowID string, details map[string]any) *models.AuditLogEntry {
	return &models.AuditLogEntry{
		OrganizationID: actor.OrganizationID,
		WorkflowID:     workflowID,
		EntityType:     entityType,
		EntityID:       entityID,
		ActorID:        actor.ID,
		Action:         action,
		Details:        details,
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
	}
}
