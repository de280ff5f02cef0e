// Package models defines the core domain models for the intent workflow
// pipeline: workflows, keywords, topic clusters, approvals, and audit entries.
package models

import "time"

// Workflow represents one content-generation run for an organization. Its
// status only moves forward through the step order (or to a terminal state),
// and only through the flow package's transition function.
type Workflow struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id" validate:"required"`
	Name           string         `json:"name"            validate:"required,min=3"`
	Status         WorkflowStatus `json:"status"          validate:"required"`
	CreatedBy      string         `json:"created_by"`
	WorkflowData   map[string]any `json:"workflow_data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}
