package db

import (
	"testing"

	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "default local",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root", Database: "switchboard"},
			want: "root@tcp(127.0.0.1:3306)/switchboard?parseTime=true",
		},
		{
			name: "with password",
			cfg:  config.DatabaseConfig{Host: "db.internal", Port: 3307, User: "swb", Password: "secret", Database: "support"},
			want: "swb:secret@tcp(db.internal:3307)/support?parseTime=true",
		},
		{
			name: "no database selected",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root"},
			want: "root@tcp(127.0.0.1:3306)/?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllModels_Count(t *testing.T) {
	m := AllModels()
	if len(m) != 6 {
		t.Errorf("AllModels() returned %d models, want 6", len(m))
	}
}

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return gdb
}

func TestAutoMigrate(t *testing.T) {
	gdb := openMemoryDB(t)
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, table := range []string{"organizations", "agents", "conversations", "messages", "assignment_records", "memberships"} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("table %q missing after migration", table)
		}
	}
}

func TestSeedOperator(t *testing.T) {
	gdb := openMemoryDB(t)
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	if err := SeedOperator(gdb, "alice"); err != nil {
		t.Fatalf("SeedOperator: %v", err)
	}

	var m models.Membership
	if err := gdb.First(&m, "user_id = ?", "alice").Error; err != nil {
		t.Fatalf("membership not created: %v", err)
	}
	if m.OrgID != models.AllOrgs {
		t.Errorf("OrgID = %q, want %q", m.OrgID, models.AllOrgs)
	}
	if m.Role != models.RoleAdmin {
		t.Errorf("Role = %q, want %q", m.Role, models.RoleAdmin)
	}

	// Seeding again is an upsert, not a duplicate.
	if err := SeedOperator(gdb, "alice"); err != nil {
		t.Fatalf("SeedOperator second call: %v", err)
	}
	var count int64
	gdb.Model(&models.Membership{}).Where("user_id = ?", "alice").Count(&count)
	if count != 1 {
		t.Errorf("membership count = %d, want 1", count)
	}
}

func TestSeedOperator_EmptyID(t *testing.T) {
	err := SeedOperator(nil, "")
	if err == nil {
		t.Fatal("expected error for empty operator ID")
	}
}
