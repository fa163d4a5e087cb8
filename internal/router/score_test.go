package router

import (
	"testing"

	"github.com/zulandar/switchboard/internal/models"
)

func onlineAgent(id string, current, max int, skills ...string) models.Agent {
	return models.Agent{
		ID:                 id,
		OrgID:              "org-1",
		Name:               id,
		Skills:             models.EncodeTags(skills),
		MaxConcurrentChats: max,
		CurrentActiveChats: current,
		Availability:       models.AvailabilityOnline,
	}
}

func conv(required ...string) *models.Conversation {
	return &models.Conversation{
		ID:             "cv-test1",
		OrgID:          "org-1",
		Status:         models.StatusUnassigned,
		Priority:       models.PriorityNormal,
		RequiredSkills: models.EncodeTags(required),
	}
}

func TestSkillMatchRatio(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		have     []string
		want     float64
	}{
		{name: "no requirements", required: nil, have: []string{"billing"}, want: 0},
		{name: "full match", required: []string{"billing"}, have: []string{"billing", "es"}, want: 1},
		{name: "half match", required: []string{"billing", "refunds"}, have: []string{"billing"}, want: 0.5},
		{name: "no match", required: []string{"billing"}, have: []string{"sales"}, want: 0},
		{name: "empty agent skills", required: []string{"billing"}, have: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SkillMatchRatio(tt.required, tt.have)
			if got != tt.want {
				t.Errorf("SkillMatchRatio(%v, %v) = %v, want %v", tt.required, tt.have, got, tt.want)
			}
		})
	}
}

func TestUtilization(t *testing.T) {
	a := onlineAgent("ag-a", 1, 4)
	if got := Utilization(&a); got != 0.25 {
		t.Errorf("Utilization(1/4) = %v, want 0.25", got)
	}

	full := onlineAgent("ag-b", 5, 4) // forced over capacity
	if got := Utilization(&full); got != 1 {
		t.Errorf("Utilization(5/4) = %v, want clamped to 1", got)
	}

	zero := onlineAgent("ag-c", 0, 0)
	if got := Utilization(&zero); got != 1 {
		t.Errorf("Utilization with max=0 = %v, want 1", got)
	}
}

func TestScore_RatingContributes(t *testing.T) {
	rated := onlineAgent("ag-a", 1, 3)
	five := 5.0
	rated.Rating = &five
	unrated := onlineAgent("ag-b", 1, 3)

	c := conv()
	if Score(c, &rated) <= Score(c, &unrated) {
		t.Errorf("Score(rated)=%v should exceed Score(unrated)=%v",
			Score(c, &rated), Score(c, &unrated))
	}
	if diff := Score(c, &rated) - Score(c, &unrated); diff != WeightRating {
		t.Errorf("rating contribution = %v, want %v", diff, WeightRating)
	}
}

func TestSelectAgent_CapacityExcludesNotDemotes(t *testing.T) {
	// Agent A is full (2/2), Agent B has headroom (1/3). A must be excluded
	// by eligibility, not merely outscored.
	a := onlineAgent("ag-a", 2, 2)
	b := onlineAgent("ag-b", 1, 3)

	d := SelectAgent(conv(), []models.Agent{a, b})
	if d.AgentID == nil || *d.AgentID != "ag-b" {
		t.Fatalf("SelectAgent chose %v, want ag-b", d.AgentID)
	}

	// With B removed there is no eligible agent at all, proving A was
	// filtered rather than scored low.
	d = SelectAgent(conv(), []models.Agent{a})
	if d.AgentID != nil {
		t.Errorf("SelectAgent with only full agent chose %v, want nil", *d.AgentID)
	}
	if d.Reason != ReasonNoEligible {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonNoEligible)
	}
}

func TestSelectAgent_OfflineExcluded(t *testing.T) {
	off := onlineAgent("ag-a", 0, 3)
	off.Availability = models.AvailabilityOffline
	away := onlineAgent("ag-b", 0, 3)
	away.Availability = models.AvailabilityAway

	d := SelectAgent(conv(), []models.Agent{off, away})
	if d.AgentID != nil {
		t.Errorf("SelectAgent with no online agents chose %v, want nil", *d.AgentID)
	}
}

func TestSelectAgent_SkillPreferred(t *testing.T) {
	skilled := onlineAgent("ag-b", 2, 3, "billing")
	unskilled := onlineAgent("ag-a", 0, 3)

	d := SelectAgent(conv("billing"), []models.Agent{unskilled, skilled})
	if d.AgentID == nil || *d.AgentID != "ag-b" {
		t.Fatalf("SelectAgent chose %v, want skilled ag-b", d.AgentID)
	}
	if d.Reason != ReasonBestScore {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonBestScore)
	}
}

func TestSelectAgent_SkillFallback(t *testing.T) {
	// Nobody has the required tag; the full eligible pool is used and the
	// decision says so.
	a := onlineAgent("ag-a", 1, 3, "sales")
	b := onlineAgent("ag-b", 0, 3)

	d := SelectAgent(conv("billing"), []models.Agent{a, b})
	if d.AgentID == nil {
		t.Fatal("SelectAgent returned nil agent, want fallback pick")
	}
	if d.Reason != ReasonSkillFallback {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonSkillFallback)
	}
	if *d.AgentID != "ag-b" {
		t.Errorf("fallback chose %s, want least-loaded ag-b", *d.AgentID)
	}
}

func TestSelectAgent_TieBreakByLoadThenID(t *testing.T) {
	// Same utilization ratio and no skills: identical scores.
	a := onlineAgent("ag-c", 1, 3)
	b := onlineAgent("ag-b", 1, 3)
	lower := onlineAgent("ag-z", 0, 3)

	d := SelectAgent(conv(), []models.Agent{a, b, lower})
	if d.AgentID == nil || *d.AgentID != "ag-z" {
		t.Fatalf("SelectAgent chose %v, want least-utilized ag-z", d.AgentID)
	}

	// Exact tie: identical load and capacity → lowest ID wins.
	d = SelectAgent(conv(), []models.Agent{a, b})
	if d.AgentID == nil || *d.AgentID != "ag-b" {
		t.Fatalf("tie-break chose %v, want ag-b", d.AgentID)
	}
}

func TestSelectAgent_Deterministic(t *testing.T) {
	agents := []models.Agent{
		onlineAgent("ag-a", 1, 3, "billing"),
		onlineAgent("ag-b", 1, 3, "billing"),
		onlineAgent("ag-c", 2, 4, "billing"),
	}
	reversed := []models.Agent{agents[2], agents[1], agents[0]}

	first := SelectAgent(conv("billing"), agents)
	for i := 0; i < 10; i++ {
		again := SelectAgent(conv("billing"), agents)
		if *again.AgentID != *first.AgentID || again.Score != first.Score {
			t.Fatalf("run %d: decision %s/%v differs from first %s/%v",
				i, *again.AgentID, again.Score, *first.AgentID, first.Score)
		}
	}

	flipped := SelectAgent(conv("billing"), reversed)
	if *flipped.AgentID != *first.AgentID {
		t.Errorf("candidate order changed the decision: %s vs %s", *flipped.AgentID, *first.AgentID)
	}
}

func TestSelectAgent_EmptyPool(t *testing.T) {
	d := SelectAgent(conv(), nil)
	if d.AgentID != nil {
		t.Errorf("SelectAgent(empty) chose %v, want nil", *d.AgentID)
	}
	if d.ConversationID != "cv-test1" {
		t.Errorf("ConversationID = %q, want cv-test1", d.ConversationID)
	}
}
