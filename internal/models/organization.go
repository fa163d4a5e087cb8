package models

import "time"

// Organization is a tenant. Agents and conversations always belong to
// exactly one organization.
type Organization struct {
	ID        string `gorm:"primaryKey;size:32"`
	Name      string `gorm:"size:128;not null"`
	Plan      string `gorm:"size:16;default:free"`
	Active    bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
