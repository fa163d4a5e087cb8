// Package query implements the read-only listing surface over
// conversations. It never mutates routing state; writes go through the
// router and bulk packages.
package query

import (
	"fmt"
	"strings"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// Sort fields accepted by ListConversations.
const (
	SortCreatedAt    = "created_at"
	SortLastActivity = "last_activity"
	SortPriority     = "priority"
)

// Filters narrows a conversation listing. Zero values mean "no filter".
type Filters struct {
	OrgID           string
	Status          string
	Priority        string
	AssignedAgentID string
	Tag             string
	Search          string // matches subject, case-insensitive substring
	CreatedAfter    string // RFC 3339 or date, passed through to the store
	CreatedBefore   string
}

// Sort describes the listing order. The zero value sorts by most recent
// activity first.
type Sort struct {
	Field string
	Desc  bool
}

// Page bounds a listing. A zero or negative Limit falls back to the
// default page size.
type Page struct {
	Offset int
	Limit  int
}

const defaultPageSize = 50
const maxPageSize = 500

// Result carries one page of conversations plus the unpaged total, so
// clients can render pagination without a second round trip.
type Result struct {
	Conversations []models.Conversation `json:"conversations"`
	Total         int64                 `json:"total"`
	Offset        int                   `json:"offset"`
	Limit         int                   `json:"limit"`
}

// ListConversations returns one filtered, sorted page of conversations.
func ListConversations(db *gorm.DB, f Filters, s Sort, p Page) (*Result, error) {
	q := db.Model(&models.Conversation{})

	if f.OrgID != "" {
		q = q.Where("org_id = ?", f.OrgID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		if !models.ValidPriority(f.Priority) {
			return nil, fmt.Errorf("query: unknown priority %q", f.Priority)
		}
		q = q.Where("priority = ?", f.Priority)
	}
	if f.AssignedAgentID != "" {
		q = q.Where("agent_id = ?", f.AssignedAgentID)
	}
	if f.Tag != "" {
		// Tags are a JSON array column; match the quoted element.
		q = q.Where("tags LIKE ?", "%\""+f.Tag+"\"%")
	}
	if f.Search != "" {
		q = q.Where("LOWER(subject) LIKE ?", "%"+strings.ToLower(f.Search)+"%")
	}
	if f.CreatedAfter != "" {
		q = q.Where("created_at >= ?", f.CreatedAfter)
	}
	if f.CreatedBefore != "" {
		q = q.Where("created_at <= ?", f.CreatedBefore)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("query: count conversations: %w", err)
	}

	order, err := orderClause(s)
	if err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	var convs []models.Conversation
	if err := q.Order(order).Offset(offset).Limit(limit).Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("query: list conversations: %w", err)
	}

	return &Result{
		Conversations: convs,
		Total:         total,
		Offset:        offset,
		Limit:         limit,
	}, nil
}

// orderClause builds the ORDER BY for a sort spec. Priority sorts by rank,
// not lexically, so urgent precedes high precedes normal precedes low. Every
// ordering ends with id to keep pages stable across identical keys.
func orderClause(s Sort) (string, error) {
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	switch s.Field {
	case SortCreatedAt:
		return "created_at " + dir + ", id ASC", nil
	case SortPriority:
		return priorityRankSQL + " " + dir + ", created_at ASC, id ASC", nil
	case SortLastActivity, "":
		if s.Field == "" && !s.Desc {
			dir = "DESC"
		}
		return "last_activity_at " + dir + ", id ASC", nil
	}
	return "", fmt.Errorf("query: unknown sort field %q", s.Field)
}

// priorityRankSQL orders priorities by urgency. Unknown values sink last.
const priorityRankSQL = "CASE priority " +
	"WHEN 'urgent' THEN 0 " +
	"WHEN 'high' THEN 1 " +
	"WHEN 'normal' THEN 2 " +
	"WHEN 'low' THEN 3 " +
	"ELSE 4 END"
