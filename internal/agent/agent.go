// Package agent provides directory operations on the agent pool. The
// routing core only reads agents and mutates their capacity counters; the
// pool itself is managed here.
package agent

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for registering a new agent.
type CreateOpts struct {
	OrgID              string
	Name               string
	Skills             []string
	MaxConcurrentChats int
	Rating             *float64
}

// ListFilters holds optional filters for listing agents.
type ListFilters struct {
	OrgID        string
	Availability string
	Skill        string
}

// GenerateID creates a unique agent ID in ag-xxxxxx format.
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("agent: generate ID: %w", err)
	}
	return "ag-" + hex.EncodeToString(b), nil
}

// Create registers a new agent, offline until explicitly brought online.
func Create(db *gorm.DB, opts CreateOpts) (*models.Agent, error) {
	if opts.OrgID == "" {
		return nil, fmt.Errorf("agent: org ID is required")
	}
	if opts.Name == "" {
		return nil, fmt.Errorf("agent: name is required")
	}
	if opts.MaxConcurrentChats <= 0 {
		opts.MaxConcurrentChats = 3
	}
	if opts.Rating != nil && (*opts.Rating < 0 || *opts.Rating > 5) {
		return nil, fmt.Errorf("agent: rating %v outside [0,5]", *opts.Rating)
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	a := models.Agent{
		ID:                 id,
		OrgID:              opts.OrgID,
		Name:               opts.Name,
		Skills:             models.EncodeTags(opts.Skills),
		MaxConcurrentChats: opts.MaxConcurrentChats,
		Availability:       models.AvailabilityOffline,
		Rating:             opts.Rating,
	}
	if err := db.Create(&a).Error; err != nil {
		return nil, fmt.Errorf("agent: create: %w", err)
	}
	return &a, nil
}

// SetAvailability flips an agent's availability. Going offline does not
// touch the capacity counter: in-flight conversations stay charged until
// they close.
func SetAvailability(db *gorm.DB, agentID, availability string) error {
	switch availability {
	case models.AvailabilityOnline, models.AvailabilityAway, models.AvailabilityOffline:
	default:
		return fmt.Errorf("agent: unknown availability %q", availability)
	}

	res := db.Model(&models.Agent{}).Where("id = ?", agentID).
		Update("availability", availability)
	if res.Error != nil {
		return fmt.Errorf("agent: set availability on %s: %w", agentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("agent: %s: %w", agentID, gorm.ErrRecordNotFound)
	}
	return nil
}

// Get fetches an agent by ID.
func Get(db *gorm.DB, id string) (*models.Agent, error) {
	var a models.Agent
	result := db.Limit(1).Find(&a, "id = ?", id)
	if result.Error != nil {
		return nil, fmt.Errorf("agent: load %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("agent: %s: %w", id, gorm.ErrRecordNotFound)
	}
	return &a, nil
}

// List returns agents matching the filters, ordered by ID for stable output.
func List(db *gorm.DB, filters ListFilters) ([]models.Agent, error) {
	q := db.Model(&models.Agent{})
	if filters.OrgID != "" {
		q = q.Where("org_id = ?", filters.OrgID)
	}
	if filters.Availability != "" {
		q = q.Where("availability = ?", filters.Availability)
	}

	var agents []models.Agent
	if err := q.Order("id ASC").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("agent: list: %w", err)
	}

	if filters.Skill == "" {
		return agents, nil
	}
	filtered := agents[:0]
	for _, a := range agents {
		if models.HasTag(a.SkillTags(), filters.Skill) {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}
