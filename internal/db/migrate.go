package db

import (
	"fmt"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Organization{},
		&models.Agent{},
		&models.Conversation{},
		&models.Message{},
		&models.AssignmentRecord{},
		&models.Membership{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedOperator upserts an all-organizations admin membership for the
// configured operator so CLI commands are usable after db init.
func SeedOperator(db *gorm.DB, userID string) error {
	if userID == "" {
		return fmt.Errorf("db: operator user ID is required")
	}

	m := models.Membership{
		UserID: userID,
		OrgID:  models.AllOrgs,
		Role:   models.RoleAdmin,
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "org_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(&m)
	if result.Error != nil {
		return fmt.Errorf("db: seed operator %q: %w", userID, result.Error)
	}
	return nil
}
