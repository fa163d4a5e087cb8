package models

import "time"

// Agent availability states. Only online agents are eligible for automatic
// assignment.
const (
	AvailabilityOnline  = "online"
	AvailabilityAway    = "away"
	AvailabilityOffline = "offline"
)

// Agent is a human support representative with finite concurrent-chat capacity.
type Agent struct {
	ID                 string `gorm:"primaryKey;size:32"`
	OrgID              string `gorm:"size:32;not null;index"`
	Name               string `gorm:"size:128;not null"`
	Skills             string `gorm:"type:json"`
	MaxConcurrentChats int    `gorm:"not null;default:3"`
	CurrentActiveChats int    `gorm:"not null;default:0"`
	Availability       string `gorm:"size:16;default:offline;index"`
	Rating             *float64
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Org *Organization `gorm:"foreignKey:OrgID"`
}

// SkillTags decodes the agent's skill tags.
func (a *Agent) SkillTags() []string {
	return DecodeTags(a.Skills)
}

// HasCapacity reports whether the agent can take one more conversation.
func (a *Agent) HasCapacity() bool {
	return a.CurrentActiveChats < a.MaxConcurrentChats
}
