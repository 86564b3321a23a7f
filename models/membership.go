package models

import (
	"time"
)

type MembershipRole string

const (
	MembershipRoleMember    MembershipRole = "member"
	MembershipRoleSupporter MembershipRole = "supporter"
	MembershipRoleAdmin     MembershipRole = "admin"
)

// OrganizationMembership links a user to an organization with a role. The
// candidate pool for assignment is the supporter and admin members of the org.
type OrganizationMembership struct {
	ID        string         `json:"id"              db:"id"`
	OrgID     OrgID          `json:"organization_id" db:"organization_id"`
	UserID    string         `json:"user_id"         db:"user_id"`
	Role      MembershipRole `json:"role"            db:"role"`
	CreatedAt time.Time      `json:"created_at"      db:"created_at"`
}

// CanTakeConversations reports whether the role participates in the
// assignment pool.
func (m *OrganizationMembership) CanTakeConversations() bool {
	return m.Role == MembershipRoleSupporter || m.Role == MembershipRoleAdmin
}
