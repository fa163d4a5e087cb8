package query

import (
	"testing"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Conversation{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seed(t *testing.T, db *gorm.DB, c models.Conversation) {
	t.Helper()
	if c.OrgID == "" {
		c.OrgID = "org-1"
	}
	if c.Status == "" {
		c.Status = models.StatusUnassigned
	}
	if c.Priority == "" {
		c.Priority = models.PriorityNormal
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed conversation %s: %v", c.ID, err)
	}
}

func ids(convs []models.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func TestListConversations_StatusAndOrgFilter(t *testing.T) {
	db := testDB(t)
	ag := "ag-1"
	seed(t, db, models.Conversation{ID: "cv-1", Status: models.StatusAssigned, AgentID: &ag})
	seed(t, db, models.Conversation{ID: "cv-2", Status: models.StatusUnassigned})
	seed(t, db, models.Conversation{ID: "cv-3", OrgID: "org-2", Status: models.StatusAssigned, AgentID: &ag})

	r, err := ListConversations(db, Filters{OrgID: "org-1", Status: models.StatusAssigned}, Sort{}, Page{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if r.Total != 1 || len(r.Conversations) != 1 || r.Conversations[0].ID != "cv-1" {
		t.Errorf("got %v (total %d), want only cv-1", ids(r.Conversations), r.Total)
	}
}

func TestListConversations_AssignedAgentFilter(t *testing.T) {
	db := testDB(t)
	a1, a2 := "ag-1", "ag-2"
	seed(t, db, models.Conversation{ID: "cv-1", Status: models.StatusAssigned, AgentID: &a1})
	seed(t, db, models.Conversation{ID: "cv-2", Status: models.StatusAssigned, AgentID: &a2})
	seed(t, db, models.Conversation{ID: "cv-3"})

	r, err := ListConversations(db, Filters{AssignedAgentID: "ag-2"}, Sort{}, Page{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(r.Conversations) != 1 || r.Conversations[0].ID != "cv-2" {
		t.Errorf("got %v, want only cv-2", ids(r.Conversations))
	}
}

func TestListConversations_SearchSubject(t *testing.T) {
	db := testDB(t)
	seed(t, db, models.Conversation{ID: "cv-1", Subject: "Refund for order 1234"})
	seed(t, db, models.Conversation{ID: "cv-2", Subject: "Login problem"})

	r, err := ListConversations(db, Filters{Search: "refund"}, Sort{}, Page{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(r.Conversations) != 1 || r.Conversations[0].ID != "cv-1" {
		t.Errorf("got %v, want only cv-1", ids(r.Conversations))
	}
}

func TestListConversations_TagFilter(t *testing.T) {
	db := testDB(t)
	seed(t, db, models.Conversation{ID: "cv-1", Tags: models.EncodeTags([]string{"vip", "billing"})})
	seed(t, db, models.Conversation{ID: "cv-2", Tags: models.EncodeTags([]string{"billing"})})

	r, err := ListConversations(db, Filters{Tag: "vip"}, Sort{}, Page{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(r.Conversations) != 1 || r.Conversations[0].ID != "cv-1" {
		t.Errorf("got %v, want only cv-1", ids(r.Conversations))
	}
}

func TestListConversations_DefaultSortIsRecentActivity(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	seed(t, db, models.Conversation{ID: "cv-stale", LastActivityAt: now.Add(-2 * time.Hour)})
	seed(t, db, models.Conversation{ID: "cv-fresh", LastActivityAt: now})
	seed(t, db, models.Conversation{ID: "cv-mid", LastActivityAt: now.Add(-time.Hour)})

	r, err := ListConversations(db, Filters{}, Sort{}, Page{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	got := ids(r.Conversations)
	want := []string{"cv-fresh", "cv-mid", "cv-stale"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestListConversations_PrioritySortByRank(t *testing.T) {
	db := testDB(t)
	seed(t, db, models.Conversation{ID: "cv-low", Priority: models.PriorityLow})
	seed(t, db, models.Conversation{ID: "cv-urgent", Priority: models.PriorityUrgent})
	seed(t, db, models.Conversation{ID: "cv-high", Priority: models.PriorityHigh})
	seed(t, db, models.Conversation{ID: "cv-normal", Priority: models.PriorityNormal})

	r, err := ListConversations(db, Filters{}, Sort{Field: SortPriority}, Page{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	got := ids(r.Conversations)
	want := []string{"cv-urgent", "cv-high", "cv-normal", "cv-low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestListConversations_Pagination(t *testing.T) {
	db := testDB(t)
	base := time.Now()
	for _, id := range []string{"cv-1", "cv-2", "cv-3", "cv-4", "cv-5"} {
		seed(t, db, models.Conversation{ID: id, CreatedAt: base})
	}

	r, err := ListConversations(db, Filters{}, Sort{Field: SortCreatedAt}, Page{Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if r.Total != 5 {
		t.Errorf("total = %d, want 5 regardless of the page", r.Total)
	}
	got := ids(r.Conversations)
	want := []string{"cv-3", "cv-4"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("page = %v, want %v", got, want)
	}
}

func TestListConversations_UnknownSortField(t *testing.T) {
	db := testDB(t)
	if _, err := ListConversations(db, Filters{}, Sort{Field: "karma"}, Page{}); err == nil {
		t.Fatal("expected error for unknown sort field")
	}
}

func TestListConversations_UnknownPriorityFilter(t *testing.T) {
	db := testDB(t)
	if _, err := ListConversations(db, Filters{Priority: "critical"}, Sort{}, Page{}); err == nil {
		t.Fatal("expected error for unknown priority filter")
	}
}
