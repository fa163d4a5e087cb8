package models

import "time"

// AllOrgs is the org scope that grants a membership across every
// organization. It is an explicit capability row, not an implicit branch.
const AllOrgs = "*"

// Membership roles.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
	RoleViewer     = "viewer"
)

// Membership grants a user a role within one organization (or all of them
// via the AllOrgs scope).
type Membership struct {
	UserID    string `gorm:"primaryKey;size:32"`
	OrgID     string `gorm:"primaryKey;size:32"`
	Role      string `gorm:"size:16;default:agent"`
	CreatedAt time.Time
}
