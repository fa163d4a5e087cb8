package models

import "time"

// Conversation statuses. A conversation moves unassigned → assigned →
// {escalated, resolved} → closed; closed is terminal.
const (
	StatusUnassigned = "unassigned"
	StatusAssigned   = "assigned"
	StatusEscalated  = "escalated"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Conversation priorities, most urgent first.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// PriorityRank maps a priority name to its sort rank (0 = most urgent).
// Unknown values rank after low.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// ValidPriority reports whether the given string is a known priority name.
func ValidPriority(priority string) bool {
	return PriorityRank(priority) < 4
}

// Conversation is a customer support chat session routed between bot and agent.
type Conversation struct {
	ID               string    `gorm:"primaryKey;size:32"`
	OrgID            string    `gorm:"size:32;not null;index"`
	Subject          string    `gorm:"size:256"`
	Status           string    `gorm:"size:16;default:unassigned;index"`
	Priority         string    `gorm:"size:8;default:normal;index"`
	AgentID          *string   `gorm:"size:32;index"`
	HeldAgentID      *string   `gorm:"size:32"`
	RequiredSkills   string    `gorm:"type:json"`
	Tags             string    `gorm:"type:json"`
	EscalationReason string    `gorm:"size:256"`
	LastActivityAt   time.Time `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ResolvedAt       *time.Time
	ClosedAt         *time.Time

	Org      *Organization `gorm:"foreignKey:OrgID"`
	Messages []Message     `gorm:"foreignKey:ConversationID"`
}

// RequiredSkillTags decodes the conversation's required skill tags.
func (c *Conversation) RequiredSkillTags() []string {
	return DecodeTags(c.RequiredSkills)
}

// TagList decodes the conversation's free-form tags.
func (c *Conversation) TagList() []string {
	return DecodeTags(c.Tags)
}

// Terminal reports whether the conversation is in its terminal state.
func (c *Conversation) Terminal() bool {
	return c.Status == StatusClosed
}

// OwnerID returns the agent currently holding this conversation's capacity
// slot: the assigned agent, or the held agent while resolved.
func (c *Conversation) OwnerID() *string {
	if c.AgentID != nil {
		return c.AgentID
	}
	return c.HeldAgentID
}
