package agent

import (
	"errors"
	"strings"
	"testing"

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
	if err := db.AutoMigrate(&models.Agent{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestCreate(t *testing.T) {
	db := testDB(t)

	rating := 4.5
	a, err := Create(db, CreateOpts{
		OrgID:              "org-1",
		Name:               "Dana",
		Skills:             []string{"billing", "es"},
		MaxConcurrentChats: 5,
		Rating:             &rating,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !strings.HasPrefix(a.ID, "ag-") {
		t.Errorf("ID = %q, want ag- prefix", a.ID)
	}
	if a.Availability != models.AvailabilityOffline {
		t.Errorf("availability = %s, want offline until brought online", a.Availability)
	}
	if a.CurrentActiveChats != 0 {
		t.Errorf("current_active_chats = %d, want 0", a.CurrentActiveChats)
	}
	if got := a.SkillTags(); len(got) != 2 {
		t.Errorf("skills = %v, want 2 tags", got)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := testDB(t)

	if _, err := Create(db, CreateOpts{Name: "NoOrg"}); err == nil {
		t.Error("expected error for missing org")
	}
	if _, err := Create(db, CreateOpts{OrgID: "org-1"}); err == nil {
		t.Error("expected error for missing name")
	}
	bad := 7.0
	if _, err := Create(db, CreateOpts{OrgID: "org-1", Name: "X", Rating: &bad}); err == nil {
		t.Error("expected error for rating outside [0,5]")
	}
}

func TestCreate_DefaultCapacity(t *testing.T) {
	db := testDB(t)
	a, err := Create(db, CreateOpts{OrgID: "org-1", Name: "Eli"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.MaxConcurrentChats != 3 {
		t.Errorf("max_concurrent_chats = %d, want default 3", a.MaxConcurrentChats)
	}
}

func TestSetAvailability(t *testing.T) {
	db := testDB(t)
	a, err := Create(db, CreateOpts{OrgID: "org-1", Name: "Dana"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := SetAvailability(db, a.ID, models.AvailabilityOnline); err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}
	got, err := Get(db, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Availability != models.AvailabilityOnline {
		t.Errorf("availability = %s, want online", got.Availability)
	}
}

func TestSetAvailability_Invalid(t *testing.T) {
	db := testDB(t)
	if err := SetAvailability(db, "ag-1", "busy"); err == nil {
		t.Fatal("expected error for unknown availability")
	}
}

func TestSetAvailability_NotFound(t *testing.T) {
	db := testDB(t)
	err := SetAvailability(db, "ag-ghost", models.AvailabilityOnline)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err = %v, want gorm.ErrRecordNotFound", err)
	}
}

func TestList_Filters(t *testing.T) {
	db := testDB(t)
	mk := func(name string, skills ...string) *models.Agent {
		a, err := Create(db, CreateOpts{OrgID: "org-1", Name: name, Skills: skills})
		if err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		return a
	}
	dana := mk("Dana", "billing")
	mk("Eli", "sales")

	if err := SetAvailability(db, dana.ID, models.AvailabilityOnline); err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}

	online, err := List(db, ListFilters{Availability: models.AvailabilityOnline})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(online) != 1 || online[0].Name != "Dana" {
		t.Errorf("online agents = %d, want only Dana", len(online))
	}

	billing, err := List(db, ListFilters{OrgID: "org-1", Skill: "billing"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(billing) != 1 || billing[0].Name != "Dana" {
		t.Errorf("billing agents = %v, want only Dana", len(billing))
	}

	all, err := List(db, ListFilters{OrgID: "org-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all agents = %d, want 2", len(all))
	}
}
