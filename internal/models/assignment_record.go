package models

import "time"

// AssignmentRecord is an audit row persisted for every routing decision,
// including failed ones (AgentID null when no agent was eligible).
type AssignmentRecord struct {
	ID             uint    `gorm:"primaryKey;autoIncrement"`
	ConversationID string  `gorm:"size:32;not null;index"`
	AgentID        *string `gorm:"size:32"`
	ActorID        string  `gorm:"size:32"`
	Reason         string  `gorm:"size:256"`
	Score          float64
	Forced         bool `gorm:"default:false"`
	CreatedAt      time.Time
}
