package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recorder struct {
	published []Envelope
	err       error
}

func (r *recorder) Publish(ctx context.Context, env Envelope) error {
	if r.err != nil {
		return r.err
	}
	r.published = append(r.published, env)
	return nil
}

func (r *recorder) Close() error { return nil }

func TestNewEnvelope(t *testing.T) {
	before := time.Now().UTC()
	env := NewEnvelope(TypeConversationAssigned, map[string]string{"conversation_id": "cv-1"})

	if env.Meta.ID == "" {
		t.Error("envelope has no event ID")
	}
	if env.Meta.Type != TypeConversationAssigned {
		t.Errorf("type = %q, want %q", env.Meta.Type, TypeConversationAssigned)
	}
	if env.Meta.Source != "switchboard" {
		t.Errorf("source = %q, want switchboard", env.Meta.Source)
	}
	if env.Meta.OccurredAt.Before(before) {
		t.Errorf("occurred_at %v is before the call", env.Meta.OccurredAt)
	}

	other := NewEnvelope(TypeConversationAssigned, nil)
	if other.Meta.ID == env.Meta.ID {
		t.Error("two envelopes share an event ID")
	}
}

func TestEmit(t *testing.T) {
	rec := &recorder{}
	Emit(context.Background(), rec, TypeConversationClosed, map[string]string{"conversation_id": "cv-1"})

	if len(rec.published) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(rec.published))
	}
	if rec.published[0].Meta.Type != TypeConversationClosed {
		t.Errorf("type = %q, want %q", rec.published[0].Meta.Type, TypeConversationClosed)
	}
}

func TestEmit_NilPublisher(t *testing.T) {
	// Must not panic; emission is simply disabled.
	Emit(context.Background(), nil, TypeConversationAssigned, nil)
}

func TestEmit_PublisherErrorIsSwallowed(t *testing.T) {
	rec := &recorder{err: errors.New("bus down")}
	Emit(context.Background(), rec, TypeConversationAssigned, nil)
	if len(rec.published) != 0 {
		t.Error("errored publish still recorded an envelope")
	}
}
