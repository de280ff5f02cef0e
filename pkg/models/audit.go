package models

import "time"

// AuditAction is the verb recorded in an audit entry.
type AuditAction string

const (
	AuditGateChecked            AuditAction = "gate_checked"
	AuditGateDegraded           AuditAction = "gate_degraded"
	AuditApprovalRecorded       AuditAction = "approval_recorded"
	AuditStatusTransitioned     AuditAction = "status_transitioned"
	AuditTriggerEmitted         AuditAction = "trigger_emitted"
	AuditTriggerEmissionFailed  AuditAction = "trigger_emission_failed"
	AuditWorkflowCreated        AuditAction = "workflow_created"
	AuditWorkflowCancelled      AuditAction = "workflow_cancelled"
	AuditWorkflowFailed         AuditAction = "workflow_failed"
	AuditReconciliationReemit   AuditAction = "reconciliation_reemit"
	AuditClusterValidationRun   AuditAction = "cluster_validation_run"
	AuditStepAutomationFinished AuditAction = "step_automation_finished"
	AuditStepAutomationFailed   AuditAction = "step_automation_failed"
)

// AuditLogEntry is an immutable record of a state-affecting event. Entries
// carry enough context to reconstruct who did what without joining against
// mutable tables.
type AuditLogEntry struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	WorkflowID     string         `json:"workflow_id,omitempty"`
	EntityType     EntityType     `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	ActorID        string         `json:"actor_id"`
	Action         AuditAction    `json:"action"`
	Details        map[string]any `json:"details,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
