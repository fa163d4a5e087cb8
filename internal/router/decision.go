package router

import (
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// Decision records the outcome of one agent-selection attempt. AgentID is
// nil when no agent was eligible; the reason explains why an agent was (or
// was not) chosen.
type Decision struct {
	ConversationID string    `json:"conversation_id"`
	AgentID        *string   `json:"agent_id"`
	Reason         string    `json:"reason"`
	Score          float64   `json:"score"`
	Forced         bool      `json:"forced"`
	DecidedAt      time.Time `json:"decided_at"`
}

// recordDecision persists a decision as an audit row.
func recordDecision(tx *gorm.DB, d *Decision, actorID string) error {
	rec := models.AssignmentRecord{
		ConversationID: d.ConversationID,
		AgentID:        d.AgentID,
		ActorID:        actorID,
		Reason:         d.Reason,
		Score:          d.Score,
		Forced:         d.Forced,
	}
	return tx.Create(&rec).Error
}
