// Package authz provides the single capability-check interface used by the
// routing coordinator, replacing ad hoc per-operation role branches.
package authz

import (
	"fmt"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// Actions checked against the Authorizer.
const (
	ActionAssign      = "assign"
	ActionEscalate    = "escalate"
	ActionResolve     = "resolve"
	ActionReopen      = "reopen"
	ActionClose       = "close"
	ActionSetPriority = "set_priority"
	ActionAddTag      = "add_tag"
	ActionView        = "view"
)

// Authorizer answers whether a user may perform an action on a conversation.
type Authorizer interface {
	CanAct(userID, action string, conv *models.Conversation) (bool, error)
}

// Memberships is the membership-table-backed Authorizer. A user may act on
// a conversation when they hold a non-viewer membership in its organization
// or the explicit all-organizations scope; viewers may only view.
type Memberships struct {
	db *gorm.DB
}

// NewMemberships returns an Authorizer backed by the memberships table.
func NewMemberships(db *gorm.DB) *Memberships {
	return &Memberships{db: db}
}

// CanAct implements Authorizer.
func (m *Memberships) CanAct(userID, action string, conv *models.Conversation) (bool, error) {
	if userID == "" || conv == nil {
		return false, nil
	}

	var memberships []models.Membership
	err := m.db.Where("user_id = ? AND org_id IN ?", userID, []string{conv.OrgID, models.AllOrgs}).
		Find(&memberships).Error
	if err != nil {
		return false, fmt.Errorf("authz: load memberships for %s: %w", userID, err)
	}
	if len(memberships) == 0 {
		return false, nil
	}

	for _, mb := range memberships {
		if mb.Role != models.RoleViewer {
			return true, nil
		}
	}
	return action == ActionView, nil
}

// AllowAll authorizes everything. Test use only.
type AllowAll struct{}

// CanAct implements Authorizer.
func (AllowAll) CanAct(userID, action string, conv *models.Conversation) (bool, error) {
	return true, nil
}
