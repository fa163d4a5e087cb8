package sweeper

import (
	"context"
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
	if err := db.AutoMigrate(&models.Agent{}, &models.Conversation{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedResolved(t *testing.T, db *gorm.DB, id string, resolvedAt time.Time, heldAgent *string) {
	t.Helper()
	c := models.Conversation{
		ID:          id,
		OrgID:       "org-1",
		Status:      models.StatusResolved,
		Priority:    models.PriorityNormal,
		HeldAgentID: heldAgent,
		ResolvedAt:  &resolvedAt,
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed conversation %s: %v", id, err)
	}
}

func TestSweepOnce_ClosesOnlyExpired(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	seedResolved(t, db, "cv-old", now.Add(-100*time.Hour), nil)
	seedResolved(t, db, "cv-older", now.Add(-200*time.Hour), nil)
	seedResolved(t, db, "cv-fresh", now.Add(-time.Hour), nil)
	active := models.Conversation{ID: "cv-open", OrgID: "org-1", Status: models.StatusUnassigned, Priority: models.PriorityNormal}
	if err := db.Create(&active).Error; err != nil {
		t.Fatalf("seed cv-open: %v", err)
	}

	s := New(db, 72*time.Hour, nil)
	n, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 2 {
		t.Fatalf("closed %d conversations, want 2", n)
	}

	var statuses []struct {
		ID     string
		Status string
	}
	db.Model(&models.Conversation{}).Select("id, status").Order("id").Scan(&statuses)
	want := map[string]string{
		"cv-old":   models.StatusClosed,
		"cv-older": models.StatusClosed,
		"cv-fresh": models.StatusResolved,
		"cv-open":  models.StatusUnassigned,
	}
	for _, s := range statuses {
		if s.Status != want[s.ID] {
			t.Errorf("%s status = %s, want %s", s.ID, s.Status, want[s.ID])
		}
	}
}

func TestSweepOnce_ReleasesHeldCapacity(t *testing.T) {
	db := testDB(t)
	ag := models.Agent{
		ID: "ag-1", OrgID: "org-1", Name: "ag-1",
		MaxConcurrentChats: 3, CurrentActiveChats: 1,
		Availability: models.AvailabilityOnline,
	}
	if err := db.Create(&ag).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	held := "ag-1"
	seedResolved(t, db, "cv-1", time.Now().Add(-100*time.Hour), &held)

	s := New(db, 72*time.Hour, nil)
	if _, err := s.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}

	var got models.Agent
	db.First(&got, "id = ?", "ag-1")
	if got.CurrentActiveChats != 0 {
		t.Errorf("agent counter = %d, want 0 after sweep released the held slot", got.CurrentActiveChats)
	}
}

func TestSweepOnce_EmptyIsNoop(t *testing.T) {
	db := testDB(t)
	s := New(db, 72*time.Hour, nil)
	n, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 0 {
		t.Errorf("closed %d conversations on an empty store, want 0", n)
	}
}

func TestRun_RejectsBadSchedule(t *testing.T) {
	db := testDB(t)
	s := New(db, 72*time.Hour, nil)
	if err := s.Run(context.Background(), "not a cron line"); err == nil {
		t.Fatal("expected error for unparseable schedule")
	}
}

func TestNextCronDuration(t *testing.T) {
	if d := nextCronDuration("*/5 * * * *"); d <= 0 || d > 5*time.Minute {
		t.Errorf("next duration for */5 = %v, want within (0, 5m]", d)
	}
	if d := nextCronDuration("garbage"); d != 0 {
		t.Errorf("next duration for garbage = %v, want 0", d)
	}
}

func TestNextSweepInterval_NeverZero(t *testing.T) {
	// The timer loop rearms unconditionally, so the interval must never
	// collapse to zero even when the computed wait does.
	if d := nextSweepInterval("garbage"); d != time.Second {
		t.Errorf("interval for unparseable schedule = %v, want 1s floor", d)
	}
	if d := nextSweepInterval("*/5 * * * *"); d < time.Second || d > 5*time.Minute {
		t.Errorf("interval for */5 = %v, want within [1s, 5m]", d)
	}
}
