package models

import "time"

// EntityType names the kind of entity an approval or audit entry refers to.
type EntityType string

const (
	EntityWorkflow EntityType = "workflow"
	EntityKeyword  EntityType = "keyword"
	EntityCluster  EntityType = "cluster"
)

// ApprovalType names the checkpoint an approval belongs to.
type ApprovalType string

const (
	ApprovalICP          ApprovalType = "icp"
	ApprovalCompetitors  ApprovalType = "competitors"
	ApprovalSeedKeywords ApprovalType = "seed_keywords"
	ApprovalLongtails    ApprovalType = "longtails"
	ApprovalSubtopics    ApprovalType = "subtopics"
)

// stepApprovals maps each approval-gated step to the approval type whose
// approved record unlocks it. Steps absent here advance automatically.
var stepApprovals = map[WorkflowStatus]ApprovalType{
	StatusICP:         ApprovalICP,
	StatusCompetitors: ApprovalCompetitors,
	StatusKeywords:    ApprovalSeedKeywords,
	StatusLongtails:   ApprovalLongtails,
	StatusSubtopics:   ApprovalSubtopics,
}

// StepApprovalType returns the approval type gating the given step, and
// whether the step is gated at all.
func StepApprovalType(status WorkflowStatus) (ApprovalType, bool) {
	approvalType, ok := stepApprovals[status]

	return approvalType, ok
}

// Decision is a human approve/reject verdict.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Approval is an idempotent human decision record, unique per
// (entity_id, entity_type, approval_type). Re-submission overwrites.
type Approval struct {
	EntityID     string       `json:"entity_id"     validate:"required"`
	EntityType   EntityType   `json:"entity_type"   validate:"required"`
	ApprovalType ApprovalType `json:"approval_type" validate:"required"`
	Decision     Decision     `json:"decision"      validate:"required,oneof=approved rejected"`
	ApproverID   string       `json:"approver_id"`
	Feedback     string       `json:"feedback,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
