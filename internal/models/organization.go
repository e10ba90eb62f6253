package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant that groups users and files.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrgRole is the role of a user in an organization.
type OrgRole string

const (
	OrgRoleMember OrgRole = "member"
	OrgRoleAdmin  OrgRole = "admin"
)

// Membership is one (organization, role) entry of a user's membership set.
type Membership struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           OrgRole   `json:"role"`
}

// IsAdmin reports whether the membership carries the admin role.
func (m Membership) IsAdmin() bool {
	return m.Role == OrgRoleAdmin
}

// OrganizationUser links a user to an organization with a role.
type OrganizationUser struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           OrgRole   `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
