package router

import (
	"fmt"
	"log"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// AssignOpts holds parameters for assigning a conversation to an agent.
type AssignOpts struct {
	ConversationID string
	AgentID        string // empty → automatic selection; transfers must name an agent
	ActorID        string
	Force          bool   // bypass the capacity guard; flagged and logged, never silent
	Transfer       bool   // permit re-assignment from assigned/escalated
	Reason         string // transfer reason, required when Transfer is set
}

// Assign routes a conversation to an agent and charges the agent's capacity
// counter. Valid from unassigned, or from assigned/escalated when Transfer
// is set. The capacity increment is a single guarded UPDATE so concurrent
// assignments cannot overbook an agent; the conversation transition is a
// compare-and-set on the observed status and owner so exactly one of two
// racing assigns wins. Automatic selection only targets unassigned
// conversations; a transfer always names its destination agent.
//
// When no agent is eligible the decision is still returned (with a nil
// AgentID) alongside ErrNoEligibleAgent, so callers can render
// "unassignable" instead of failing opaquely.
func Assign(db *gorm.DB, opts AssignOpts) (*Decision, error) {
	if opts.ConversationID == "" {
		return nil, fmt.Errorf("router: conversation ID is required")
	}
	if opts.Transfer && opts.Reason == "" {
		return nil, fmt.Errorf("router: transfer reason is required")
	}
	if opts.Transfer && opts.AgentID == "" {
		return nil, fmt.Errorf("router: transfer requires an explicit agent")
	}

	var conv models.Conversation
	result := db.Limit(1).Find(&conv, "id = ?", opts.ConversationID)
	if result.Error != nil {
		return nil, fmt.Errorf("router: load conversation %s: %w", opts.ConversationID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("router: conversation %s: %w", opts.ConversationID, ErrNotFound)
	}

	switch conv.Status {
	case models.StatusUnassigned:
	case models.StatusAssigned, models.StatusEscalated:
		if !opts.Transfer {
			return nil, fmt.Errorf("router: conversation %s is already %s: %w",
				conv.ID, conv.Status, ErrInvalidStateTransition)
		}
	default:
		return nil, fmt.Errorf("router: assign from %s: %w", conv.Status, ErrInvalidStateTransition)
	}

	decision, err := decideAgent(db, &conv, opts)
	if err != nil {
		return decision, err
	}

	newAgentID := *decision.AgentID
	sameAgent := conv.AgentID != nil && *conv.AgentID == newAgentID

	err = db.Transaction(func(tx *gorm.DB) error {
		if !sameAgent {
			if err := chargeAgent(tx, newAgentID, opts.Force); err != nil {
				return err
			}
		}

		// CAS on the observed status and owner: a concurrent transition or
		// transfer makes this update match zero rows and rolls back the
		// capacity charge.
		res := ownerCAS(tx.Model(&models.Conversation{}).
			Where("id = ? AND status = ?", conv.ID, conv.Status), conv.AgentID).
			Updates(map[string]interface{}{
				"status":        models.StatusAssigned,
				"agent_id":      newAgentID,
				"held_agent_id": nil,
			})
		if res.Error != nil {
			return fmt.Errorf("router: update conversation %s: %w", conv.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("router: conversation %s changed concurrently: %w",
				conv.ID, ErrInvalidStateTransition)
		}

		if conv.AgentID != nil && !sameAgent {
			if err := releaseAgent(tx, *conv.AgentID); err != nil {
				return err
			}
		}

		return recordDecision(tx, decision, opts.ActorID)
	})
	if err != nil {
		return nil, err
	}

	if opts.Force {
		log.Printf("router: forced assignment of %s to agent %s by %s",
			conv.ID, newAgentID, opts.ActorID)
	}
	return decision, nil
}

// decideAgent resolves the target agent: the explicitly requested one, or
// the best automatic pick from the org's online pool. Failed automatic
// selections are persisted as audit rows before returning.
func decideAgent(db *gorm.DB, conv *models.Conversation, opts AssignOpts) (*Decision, error) {
	if opts.AgentID != "" {
		var agent models.Agent
		result := db.Limit(1).Find(&agent, "id = ? AND org_id = ?", opts.AgentID, conv.OrgID)
		if result.Error != nil {
			return nil, fmt.Errorf("router: load agent %s: %w", opts.AgentID, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, fmt.Errorf("router: agent %s in org %s: %w", opts.AgentID, conv.OrgID, ErrNotFound)
		}

		reason := ReasonManual
		if opts.Transfer {
			reason = ReasonTransfer + ": " + opts.Reason
		}
		return &Decision{
			ConversationID: conv.ID,
			AgentID:        &agent.ID,
			Reason:         reason,
			Score:          Score(conv, &agent),
			Forced:         opts.Force,
			DecidedAt:      time.Now(),
		}, nil
	}

	var candidates []models.Agent
	if err := db.Where("org_id = ? AND availability = ?", conv.OrgID, models.AvailabilityOnline).
		Order("id ASC").Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("router: load agent pool for org %s: %w", conv.OrgID, err)
	}

	decision := SelectAgent(conv, candidates)
	if decision.AgentID == nil {
		if err := recordDecision(db, &decision, opts.ActorID); err != nil {
			log.Printf("router: record failed decision for %s: %v", conv.ID, err)
		}
		return &decision, fmt.Errorf("router: conversation %s: %w", conv.ID, ErrNoEligibleAgent)
	}
	return &decision, nil
}

// chargeAgent increments an agent's active-chat counter. The non-forced
// path guards on availability and spare capacity in the UPDATE itself, so
// two racing assignments cannot both land on the agent's last slot. The
// forced path drops the capacity guard but still requires the agent to be
// in the pool and not offline.
func chargeAgent(tx *gorm.DB, agentID string, force bool) error {
	q := tx.Model(&models.Agent{})
	if force {
		q = q.Where("id = ? AND availability <> ?", agentID, models.AvailabilityOffline)
	} else {
		q = q.Where("id = ? AND availability = ? AND current_active_chats < max_concurrent_chats",
			agentID, models.AvailabilityOnline)
	}

	res := q.UpdateColumn("current_active_chats", gorm.Expr("current_active_chats + 1"))
	if res.Error != nil {
		return fmt.Errorf("router: charge agent %s: %w", agentID, res.Error)
	}
	if res.RowsAffected == 0 {
		if force {
			return fmt.Errorf("router: forced agent %s unavailable: %w", agentID, ErrCapacityExceeded)
		}
		var count int64
		if err := tx.Model(&models.Agent{}).Where("id = ?", agentID).Count(&count).Error; err != nil {
			return fmt.Errorf("router: check agent %s: %w", agentID, err)
		}
		if count == 0 {
			return fmt.Errorf("router: agent %s: %w", agentID, ErrNotFound)
		}
		return fmt.Errorf("router: agent %s is offline or at capacity: %w", agentID, ErrNoEligibleAgent)
	}
	return nil
}

// releaseAgent decrements an agent's active-chat counter, guarded so the
// counter never goes negative even under duplicate releases.
func releaseAgent(tx *gorm.DB, agentID string) error {
	res := tx.Model(&models.Agent{}).
		Where("id = ? AND current_active_chats > 0", agentID).
		UpdateColumn("current_active_chats", gorm.Expr("current_active_chats - 1"))
	if res.Error != nil {
		return fmt.Errorf("router: release agent %s: %w", agentID, res.Error)
	}
	return nil
}
