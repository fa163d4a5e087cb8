package router

import (
	"time"

	"github.com/zulandar/switchboard/internal/models"
)

// Scoring weights. Skill fit dominates, then spare headroom, then rating.
const (
	WeightSkills   = 0.5
	WeightHeadroom = 0.3
	WeightRating   = 0.2
)

// Selection reasons surfaced in decisions.
const (
	ReasonBestScore     = "best score"
	ReasonSkillFallback = "skill fallback: no online agent matches required skills"
	ReasonNoEligible    = "no eligible agent"
	ReasonManual        = "manual override"
	ReasonTransfer      = "transfer"
)

// SkillMatchRatio returns |required ∩ have| / |required|, or 0 when no
// skills are required.
func SkillMatchRatio(required, have []string) float64 {
	if len(required) == 0 {
		return 0
	}
	matched := 0
	for _, r := range required {
		if models.HasTag(have, r) {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

// Utilization returns the agent's load fraction in [0,1]. Agents with a
// non-positive maximum count as fully utilized.
func Utilization(a *models.Agent) float64 {
	if a.MaxConcurrentChats <= 0 {
		return 1
	}
	u := float64(a.CurrentActiveChats) / float64(a.MaxConcurrentChats)
	if u > 1 {
		return 1
	}
	return u
}

// Score computes the assignment score of an agent for a conversation. Pure:
// it never consults the database and never mutates its arguments.
func Score(conv *models.Conversation, a *models.Agent) float64 {
	rating := 0.0
	if a.Rating != nil {
		rating = *a.Rating / 5
	}
	return WeightSkills*SkillMatchRatio(conv.RequiredSkillTags(), a.SkillTags()) +
		WeightHeadroom*(1-Utilization(a)) +
		WeightRating*rating
}

// Eligible reports whether an agent may receive automatic assignments:
// online with spare capacity.
func Eligible(a *models.Agent) bool {
	return a.Availability == models.AvailabilityOnline && a.HasCapacity()
}

// SelectAgent picks the best agent for a conversation from candidates.
// Skill requirements are soft: when no eligible agent matches the required
// tags the full eligible pool is used and the decision reason notes the
// fallback. Ties break on lowest current load, then lexicographically
// smallest agent ID, so the result is deterministic for any candidate order.
// The returned decision has a nil AgentID when no agent is eligible.
func SelectAgent(conv *models.Conversation, candidates []models.Agent) Decision {
	d := Decision{ConversationID: conv.ID, DecidedAt: time.Now()}

	var eligible []*models.Agent
	for i := range candidates {
		if Eligible(&candidates[i]) {
			eligible = append(eligible, &candidates[i])
		}
	}
	if len(eligible) == 0 {
		d.Reason = ReasonNoEligible
		return d
	}

	pool := eligible
	reason := ReasonBestScore
	if required := conv.RequiredSkillTags(); len(required) > 0 {
		var skilled []*models.Agent
		for _, a := range eligible {
			if SkillMatchRatio(required, a.SkillTags()) > 0 {
				skilled = append(skilled, a)
			}
		}
		if len(skilled) > 0 {
			pool = skilled
		} else {
			reason = ReasonSkillFallback
		}
	}

	best := pool[0]
	bestScore := Score(conv, best)
	for _, a := range pool[1:] {
		s := Score(conv, a)
		if betterThan(a, s, best, bestScore) {
			best, bestScore = a, s
		}
	}

	d.AgentID = &best.ID
	d.Score = bestScore
	d.Reason = reason
	return d
}

// betterThan implements the score / load / ID tie-break ordering.
func betterThan(a *models.Agent, scoreA float64, b *models.Agent, scoreB float64) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	if a.CurrentActiveChats != b.CurrentActiveChats {
		return a.CurrentActiveChats < b.CurrentActiveChats
	}
	return a.ID < b.ID
}
