package models

// Role is an organization-scoped permission level. Authentication itself
// happens upstream; callers hand the resolved identity to this package.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Actor is the resolved identity behind a request.
type Actor struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Role           Role   `json:"role"`
	IPAddress      string `json:"ip_address,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
}

// CanApprove reports whether the actor may record approval decisions.
func (a Actor) CanApprove() bool {
	return a.Role == RoleOwner || a.Role == RoleAdmin
}
