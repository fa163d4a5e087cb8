// Package notify pushes human-facing alerts about routing events to chat
// platforms. Notifications are best-effort: a failed post never rolls back
// the routing decision that triggered it.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Event kinds that warrant an alert.
const (
	KindEscalated      = "escalated"
	KindForcedOverload = "forced_overload"
	KindNoAgent        = "no_eligible_agent"
	KindBulkCompleted  = "bulk_completed"
)

// Event describes one alert.
type Event struct {
	Kind           string
	ConversationID string
	OrgID          string
	AgentID        string
	Reason         string
	Detail         string
}

// Notifier delivers one alert to a destination.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Format renders an event as a plain-text chat message.
func Format(ev Event) string {
	var b strings.Builder
	switch ev.Kind {
	case KindEscalated:
		fmt.Fprintf(&b, ":rotating_light: conversation %s escalated", ev.ConversationID)
		if ev.Reason != "" {
			fmt.Fprintf(&b, ": %s", ev.Reason)
		}
	case KindForcedOverload:
		fmt.Fprintf(&b, ":warning: conversation %s force-assigned to %s over capacity",
			ev.ConversationID, ev.AgentID)
	case KindNoAgent:
		fmt.Fprintf(&b, ":hourglass: no eligible agent for conversation %s", ev.ConversationID)
	case KindBulkCompleted:
		fmt.Fprintf(&b, ":package: bulk operation finished: %s", ev.Detail)
	default:
		fmt.Fprintf(&b, "conversation %s: %s", ev.ConversationID, ev.Kind)
	}
	if ev.OrgID != "" {
		fmt.Fprintf(&b, " (org %s)", ev.OrgID)
	}
	return b.String()
}

// Multi fans one event out to several notifiers. Each failure is logged
// and does not block the others.
type Multi struct {
	notifiers []Notifier
}

// NewMulti builds a fan-out notifier, skipping nil entries.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify delivers the event to every configured destination.
func (m *Multi) Notify(ctx context.Context, ev Event) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			log.Printf("notify: %s alert for %s: %v", ev.Kind, ev.ConversationID, err)
		}
	}
	return nil
}

// Send is the nil-safe entry point used by callers that may have no
// notifier configured.
func Send(ctx context.Context, n Notifier, ev Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, ev); err != nil {
		log.Printf("notify: %s alert for %s: %v", ev.Kind, ev.ConversationID, err)
	}
}
