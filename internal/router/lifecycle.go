package router

import (
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// Escalate marks an assigned conversation as requiring elevated attention.
// Ownership does not change; re-assigning to a higher-skill agent is a
// separate, explicit Assign call.
func Escalate(db *gorm.DB, conversationID, reason, actorID string) error {
	if conversationID == "" {
		return fmt.Errorf("router: conversation ID is required")
	}
	if reason == "" {
		return fmt.Errorf("router: escalation reason is required")
	}

	conv, err := loadConversation(db, conversationID)
	if err != nil {
		return err
	}
	if conv.Status != models.StatusAssigned {
		return fmt.Errorf("router: escalate from %s: %w", conv.Status, ErrInvalidStateTransition)
	}

	res := db.Model(&models.Conversation{}).
		Where("id = ? AND status = ?", conversationID, models.StatusAssigned).
		Updates(map[string]interface{}{
			"status":            models.StatusEscalated,
			"escalation_reason": reason,
		})
	if res.Error != nil {
		return fmt.Errorf("router: escalate %s: %w", conversationID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("router: conversation %s changed concurrently: %w",
			conversationID, ErrInvalidStateTransition)
	}
	return nil
}

// Resolve marks an assigned or escalated conversation as resolved. The
// agent's capacity slot is NOT released: resolution is reversible until the
// grace period ends, so the slot holder moves to held_agent_id and only
// Close gives it back. The visible assignment is cleared, preserving the
// invariant that agent_id is set iff the conversation is assigned or
// escalated.
func Resolve(db *gorm.DB, conversationID, actorID string) error {
	if conversationID == "" {
		return fmt.Errorf("router: conversation ID is required")
	}

	conv, err := loadConversation(db, conversationID)
	if err != nil {
		return err
	}
	if conv.Status != models.StatusAssigned && conv.Status != models.StatusEscalated {
		return fmt.Errorf("router: resolve from %s: %w", conv.Status, ErrInvalidStateTransition)
	}
	return resolveFrom(db, conv)
}

// resolveFrom applies the resolve transition for an observed snapshot. The
// CAS covers both status and owner: a transfer changes agent_id without
// touching status, so matching on status alone would park the wrong agent
// in held_agent_id.
func resolveFrom(db *gorm.DB, conv *models.Conversation) error {
	now := time.Now()
	res := ownerCAS(db.Model(&models.Conversation{}).
		Where("id = ? AND status = ?", conv.ID, conv.Status), conv.AgentID).
		Updates(map[string]interface{}{
			"status":        models.StatusResolved,
			"agent_id":      nil,
			"held_agent_id": conv.AgentID,
			"resolved_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("router: resolve %s: %w", conv.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("router: conversation %s changed concurrently: %w",
			conv.ID, ErrInvalidStateTransition)
	}
	return nil
}

// Reopen reverses a resolution within the grace period, restoring the held
// agent as the assignee. A resolved conversation whose agent slot was lost
// reopens as unassigned instead.
func Reopen(db *gorm.DB, conversationID, actorID string) error {
	if conversationID == "" {
		return fmt.Errorf("router: conversation ID is required")
	}

	conv, err := loadConversation(db, conversationID)
	if err != nil {
		return err
	}
	if conv.Status != models.StatusResolved {
		return fmt.Errorf("router: reopen from %s: %w", conv.Status, ErrInvalidStateTransition)
	}

	updates := map[string]interface{}{
		"status":        models.StatusUnassigned,
		"agent_id":      nil,
		"held_agent_id": nil,
		"resolved_at":   nil,
	}
	if conv.HeldAgentID != nil {
		updates["status"] = models.StatusAssigned
		updates["agent_id"] = conv.HeldAgentID
	}

	res := db.Model(&models.Conversation{}).
		Where("id = ? AND status = ?", conversationID, models.StatusResolved).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("router: reopen %s: %w", conversationID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("router: conversation %s changed concurrently: %w",
			conversationID, ErrInvalidStateTransition)
	}
	return nil
}

// Close terminates a conversation from any non-terminal state, releasing
// the owning agent's capacity slot exactly once. Closing an already-closed
// conversation is a successful no-op so bulk operations are safe to retry.
func Close(db *gorm.DB, conversationID, actorID string) error {
	if conversationID == "" {
		return fmt.Errorf("router: conversation ID is required")
	}

	conv, err := loadConversation(db, conversationID)
	if err != nil {
		return err
	}
	if conv.Status == models.StatusClosed {
		return nil
	}
	return closeFrom(db, conv)
}

// closeFrom applies the close transition for an observed snapshot. The CAS
// covers both status and owner: the slot released afterwards is the
// snapshot's, so a transfer committed after the snapshot must void the
// update or the new owner's slot would leak.
func closeFrom(db *gorm.DB, conv *models.Conversation) error {
	now := time.Now()
	return db.Transaction(func(tx *gorm.DB) error {
		res := ownerCAS(tx.Model(&models.Conversation{}).
			Where("id = ? AND status = ?", conv.ID, conv.Status), conv.AgentID).
			Updates(map[string]interface{}{
				"status":        models.StatusClosed,
				"agent_id":      nil,
				"held_agent_id": nil,
				"closed_at":     now,
			})
		if res.Error != nil {
			return fmt.Errorf("router: close %s: %w", conv.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost a race. If the winner closed it, that close already
			// released the slot and this call is a no-op success.
			cur, err := loadConversation(tx, conv.ID)
			if err != nil {
				return err
			}
			if cur.Status == models.StatusClosed {
				return nil
			}
			return fmt.Errorf("router: conversation %s changed concurrently: %w",
				conv.ID, ErrInvalidStateTransition)
		}

		if owner := conv.OwnerID(); owner != nil {
			if err := releaseAgent(tx, *owner); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetPriority changes a conversation's priority. Priority affects ordering
// only; it never bypasses capacity checks. Closed conversations are
// immutable.
func SetPriority(db *gorm.DB, conversationID, priority, actorID string) error {
	if conversationID == "" {
		return fmt.Errorf("router: conversation ID is required")
	}
	if !models.ValidPriority(priority) {
		return fmt.Errorf("router: unknown priority %q", priority)
	}

	res := db.Model(&models.Conversation{}).
		Where("id = ? AND status <> ?", conversationID, models.StatusClosed).
		Update("priority", priority)
	if res.Error != nil {
		return fmt.Errorf("router: set priority on %s: %w", conversationID, res.Error)
	}
	if res.RowsAffected == 0 {
		return classifyMissedUpdate(db, conversationID)
	}
	return nil
}

// AddTag appends a tag to a conversation's tag set if not already present.
// Concurrent tag writes are last-writer-wins. Closed conversations are
// immutable.
func AddTag(db *gorm.DB, conversationID, tag, actorID string) error {
	if conversationID == "" {
		return fmt.Errorf("router: conversation ID is required")
	}
	if tag == "" {
		return fmt.Errorf("router: tag is required")
	}

	conv, err := loadConversation(db, conversationID)
	if err != nil {
		return err
	}
	if conv.Status == models.StatusClosed {
		return fmt.Errorf("router: conversation %s is closed: %w", conversationID, ErrInvalidStateTransition)
	}

	tags := conv.TagList()
	if models.HasTag(tags, tag) {
		return nil
	}
	tags = append(tags, tag)

	res := db.Model(&models.Conversation{}).
		Where("id = ? AND status <> ?", conversationID, models.StatusClosed).
		Update("tags", models.EncodeTags(tags))
	if res.Error != nil {
		return fmt.Errorf("router: add tag on %s: %w", conversationID, res.Error)
	}
	if res.RowsAffected == 0 {
		return classifyMissedUpdate(db, conversationID)
	}
	return nil
}

// ownerCAS narrows a guarded conversation update to rows still held by the
// observed agent.
func ownerCAS(q *gorm.DB, agentID *string) *gorm.DB {
	if agentID == nil {
		return q.Where("agent_id IS NULL")
	}
	return q.Where("agent_id = ?", *agentID)
}

// loadConversation fetches a conversation, mapping absence to ErrNotFound.
func loadConversation(db *gorm.DB, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	result := db.Limit(1).Find(&conv, "id = ?", conversationID)
	if result.Error != nil {
		return nil, fmt.Errorf("router: load conversation %s: %w", conversationID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("router: conversation %s: %w", conversationID, ErrNotFound)
	}
	return &conv, nil
}

// classifyMissedUpdate turns a zero-row guarded update into the right error:
// the conversation either does not exist or is closed.
func classifyMissedUpdate(db *gorm.DB, conversationID string) error {
	if _, err := loadConversation(db, conversationID); err != nil {
		return err
	}
	return fmt.Errorf("router: conversation %s is closed: %w", conversationID, ErrInvalidStateTransition)
}
