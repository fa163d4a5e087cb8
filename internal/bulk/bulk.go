// Package bulk implements the batch coordinator for conversation actions.
// Atomicity is per conversation: one item's failure never rolls back or
// blocks the others, because operators bulk-act on dozens of conversations
// and expect independent outcomes.
package bulk

import (
	"fmt"
	"sort"

	"github.com/zulandar/switchboard/internal/authz"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/router"
	"gorm.io/gorm"
)

// Action kinds accepted by Apply.
const (
	ActionAssign      = "assign"
	ActionClose       = "close"
	ActionEscalate    = "escalate"
	ActionSetPriority = "set_priority"
	ActionAddTag      = "add_tag"
)

// Action describes the operation applied to every conversation in a batch.
type Action struct {
	Kind     string `json:"kind"`
	AgentID  string `json:"agent_id,omitempty"`  // assign: empty means auto-route
	Reason   string `json:"reason,omitempty"`    // escalate or transfer reason
	Priority string `json:"priority,omitempty"`  // set_priority
	Tag      string `json:"tag,omitempty"`       // add_tag
	Force    bool   `json:"force,omitempty"`     // assign
	Transfer bool   `json:"transfer,omitempty"`  // assign
}

// Opts holds parameters for one bulk call.
type Opts struct {
	ConversationIDs []string
	Action          Action
	ActorID         string
	Authorizer      authz.Authorizer // nil means no per-item authorization
}

// ItemResult is the outcome for a single conversation.
type ItemResult struct {
	ConversationID string `json:"conversation_id"`
	Success        bool   `json:"success"`
	ErrorKind      string `json:"error_kind,omitempty"`
}

// Result is the reconciled outcome of a bulk call: Attempted always equals
// Succeeded + Failed and matches the length of Items, so clients can retry
// idempotently against the itemized list.
type Result struct {
	Attempted int          `json:"attempted"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

// Apply runs one action over many conversations. Conversations are
// processed most-urgent first, oldest first within a priority, so scarce
// agent capacity goes to the most important work when a batch partially
// fails. Only a structural failure (the store being unreachable) aborts
// the whole call; per-item errors are captured in the result.
func Apply(db *gorm.DB, opts Opts) (*Result, error) {
	if err := validateAction(opts.Action); err != nil {
		return nil, err
	}
	if len(opts.ConversationIDs) == 0 {
		return &Result{Items: []ItemResult{}}, nil
	}

	var found []models.Conversation
	if err := db.Where("id IN ?", opts.ConversationIDs).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("bulk: load conversations: %w", err)
	}
	byID := make(map[string]*models.Conversation, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	// Deterministic processing order: priority rank, then age, then ID.
	sort.SliceStable(found, func(i, j int) bool {
		ri, rj := models.PriorityRank(found[i].Priority), models.PriorityRank(found[j].Priority)
		if ri != rj {
			return ri < rj
		}
		if !found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].CreatedAt.Before(found[j].CreatedAt)
		}
		return found[i].ID < found[j].ID
	})

	result := &Result{Items: make([]ItemResult, 0, len(opts.ConversationIDs))}

	for i := range found {
		conv := &found[i]
		result.record(conv.ID, applyOne(db, conv, opts))
	}

	// Missing IDs are itemized failures in input order, after the
	// processable work.
	for _, id := range opts.ConversationIDs {
		if _, ok := byID[id]; !ok {
			result.record(id, fmt.Errorf("bulk: conversation %s: %w", id, router.ErrNotFound))
			byID[id] = nil // report each missing ID once even if duplicated
		}
	}

	return result, nil
}

// applyOne authorizes and applies the action to a single conversation.
func applyOne(db *gorm.DB, conv *models.Conversation, opts Opts) error {
	if opts.Authorizer != nil {
		ok, err := opts.Authorizer.CanAct(opts.ActorID, authzAction(opts.Action.Kind), conv)
		if err != nil {
			return fmt.Errorf("bulk: authorize %s: %w", conv.ID, err)
		}
		if !ok {
			return fmt.Errorf("bulk: actor %s on %s: %w", opts.ActorID, conv.ID, router.ErrPermissionDenied)
		}
	}

	a := opts.Action
	switch a.Kind {
	case ActionAssign:
		_, err := router.Assign(db, router.AssignOpts{
			ConversationID: conv.ID,
			AgentID:        a.AgentID,
			ActorID:        opts.ActorID,
			Force:          a.Force,
			Transfer:       a.Transfer,
			Reason:         a.Reason,
		})
		return err
	case ActionClose:
		return router.Close(db, conv.ID, opts.ActorID)
	case ActionEscalate:
		return router.Escalate(db, conv.ID, a.Reason, opts.ActorID)
	case ActionSetPriority:
		return router.SetPriority(db, conv.ID, a.Priority, opts.ActorID)
	case ActionAddTag:
		return router.AddTag(db, conv.ID, a.Tag, opts.ActorID)
	}
	return fmt.Errorf("bulk: unknown action %q", a.Kind)
}

// record tallies one per-item outcome, keeping the aggregate counters in
// lockstep with the itemized list.
func (r *Result) record(conversationID string, err error) {
	item := ItemResult{ConversationID: conversationID, Success: err == nil}
	if err != nil {
		item.ErrorKind = router.Kind(err)
	}
	r.Items = append(r.Items, item)
	r.Attempted++
	if err == nil {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// validateAction rejects malformed actions before any item is touched.
func validateAction(a Action) error {
	switch a.Kind {
	case ActionAssign:
		if a.Transfer && a.Reason == "" {
			return fmt.Errorf("bulk: transfer reason is required")
		}
		if a.Transfer && a.AgentID == "" {
			return fmt.Errorf("bulk: transfer requires an explicit agent")
		}
	case ActionClose:
	case ActionEscalate:
		if a.Reason == "" {
			return fmt.Errorf("bulk: escalation reason is required")
		}
	case ActionSetPriority:
		if !models.ValidPriority(a.Priority) {
			return fmt.Errorf("bulk: unknown priority %q", a.Priority)
		}
	case ActionAddTag:
		if a.Tag == "" {
			return fmt.Errorf("bulk: tag is required")
		}
	default:
		return fmt.Errorf("bulk: unknown action %q", a.Kind)
	}
	return nil
}

// authzAction maps a bulk action kind to its capability name.
func authzAction(kind string) string {
	switch kind {
	case ActionAssign:
		return authz.ActionAssign
	case ActionClose:
		return authz.ActionClose
	case ActionEscalate:
		return authz.ActionEscalate
	case ActionSetPriority:
		return authz.ActionSetPriority
	case ActionAddTag:
		return authz.ActionAddTag
	}
	return kind
}
