package models

import "time"

// Message sender kinds.
const (
	SenderCustomer = "customer"
	SenderAgent    = "agent"
	SenderBot      = "bot"
)

// Message is one entry in a conversation transcript.
type Message struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"size:32;not null;index"`
	Sender         string `gorm:"size:16;not null"`
	SenderID       string `gorm:"size:32"`
	Body           string `gorm:"type:text"`
	CreatedAt      time.Time

	Conversation *Conversation `gorm:"foreignKey:ConversationID"`
}
