// Package sweeper closes resolved conversations whose grace period has
// expired. Expiry is a scheduled policy on top of the router, not part of
// the conversation state machine: a resolved conversation stays reopenable
// until a sweep actually closes it.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/switchboard/internal/events"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/router"
	"gorm.io/gorm"
)

// actorID identifies sweep-initiated closes in the audit trail.
const actorID = "sweeper"

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// nextSweepInterval floors nextCronDuration at one second so the sweep
// timer is always rearmed, even if the computed wait collapses to zero.
func nextSweepInterval(expr string) time.Duration {
	if d := nextCronDuration(expr); d >= time.Second {
		return d
	}
	return time.Second
}

// Sweeper periodically closes expired resolved conversations.
type Sweeper struct {
	db     *gorm.DB
	grace  time.Duration
	events events.Publisher // may be nil
}

// New creates a Sweeper closing conversations resolved longer than grace ago.
func New(db *gorm.DB, grace time.Duration, pub events.Publisher) *Sweeper {
	return &Sweeper{db: db, grace: grace, events: pub}
}

// SweepOnce closes every resolved conversation whose resolution is older
// than the grace period. It returns the number of conversations closed.
// Individual close failures are logged and do not stop the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.grace)

	var expired []models.Conversation
	err := s.db.
		Where("status = ? AND resolved_at IS NOT NULL AND resolved_at < ?",
			models.StatusResolved, cutoff).
		Order("resolved_at").
		Find(&expired).Error
	if err != nil {
		return 0, fmt.Errorf("sweeper: load expired conversations: %w", err)
	}

	closed := 0
	for _, conv := range expired {
		if err := ctx.Err(); err != nil {
			return closed, err
		}
		if err := router.Close(s.db, conv.ID, actorID); err != nil {
			// Reopened or closed since the query; skip it.
			log.Printf("sweeper: close %s: %v", conv.ID, err)
			continue
		}
		closed++
		events.Emit(ctx, s.events, events.TypeConversationClosed, map[string]string{
			"conversation_id": conv.ID,
			"org_id":          conv.OrgID,
			"closed_by":       actorID,
		})
	}
	return closed, nil
}

// Run sweeps on the given 5-field cron schedule until the context is
// cancelled. An unparseable schedule is an error, not a silent idle loop.
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("sweeper: parse schedule %q: %w", schedule, err)
	}

	timer := time.NewTimer(nextSweepInterval(schedule))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				log.Printf("sweeper: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("sweeper: closed %d expired conversations", n)
			}
			timer.Reset(nextSweepInterval(schedule))
		}
	}
}
