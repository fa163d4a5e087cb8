// Package conversation provides conversation lifecycle operations outside
// the routing core: creation, lookup, and transcript appends.
package conversation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for opening a new conversation.
type CreateOpts struct {
	OrgID          string
	Subject        string
	Priority       string // defaults to normal
	RequiredSkills []string
}

// GenerateID creates a unique conversation ID in cv-xxxxxxxx format.
func GenerateID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("conversation: generate ID: %w", err)
	}
	return "cv-" + hex.EncodeToString(b), nil
}

// Create opens a new unassigned conversation.
func Create(db *gorm.DB, opts CreateOpts) (*models.Conversation, error) {
	if opts.OrgID == "" {
		return nil, fmt.Errorf("conversation: org ID is required")
	}
	if opts.Priority == "" {
		opts.Priority = models.PriorityNormal
	}
	if !models.ValidPriority(opts.Priority) {
		return nil, fmt.Errorf("conversation: unknown priority %q", opts.Priority)
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	c := models.Conversation{
		ID:             id,
		OrgID:          opts.OrgID,
		Subject:        opts.Subject,
		Status:         models.StatusUnassigned,
		Priority:       opts.Priority,
		RequiredSkills: models.EncodeTags(opts.RequiredSkills),
		Tags:           models.EncodeTags(nil),
		LastActivityAt: time.Now(),
	}
	if err := db.Create(&c).Error; err != nil {
		return nil, fmt.Errorf("conversation: create: %w", err)
	}
	return &c, nil
}

// Get fetches a conversation by ID.
func Get(db *gorm.DB, id string) (*models.Conversation, error) {
	var c models.Conversation
	result := db.Limit(1).Find(&c, "id = ?", id)
	if result.Error != nil {
		return nil, fmt.Errorf("conversation: load %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("conversation: %s: %w", id, gorm.ErrRecordNotFound)
	}
	return &c, nil
}

// AddMessage appends a transcript entry and bumps the conversation's
// last-activity timestamp.
func AddMessage(db *gorm.DB, conversationID, sender, senderID, body string) (*models.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation: conversation ID is required")
	}
	if body == "" {
		return nil, fmt.Errorf("conversation: message body is required")
	}

	msg := models.Message{
		ConversationID: conversationID,
		Sender:         sender,
		SenderID:       senderID,
		Body:           body,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("last_activity_at", time.Now())
		if res.Error != nil {
			return fmt.Errorf("conversation: touch %s: %w", conversationID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("conversation: %s: %w", conversationID, gorm.ErrRecordNotFound)
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("conversation: add message to %s: %w", conversationID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
