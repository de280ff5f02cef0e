package web

// CreateWorkflowRequest is the payload for creating an intent workflow.
type CreateWorkflowRequest struct {
	Name         string         `json:"name"          validate:"required,min=1,max=200"`
	WorkflowData map[string]any `json:"workflow_data"`
}

// CancelWorkflowRequest carries an optional cancellation reason.
type CancelWorkflowRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ApprovalRequest is the payload for approve/reject decisions.
type ApprovalRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Feedback string `json:"feedback" validate:"max=2000"`
}
