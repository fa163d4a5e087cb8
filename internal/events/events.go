// Package events publishes routing lifecycle events to a RabbitMQ topic
// exchange so downstream consumers (analytics, SLA monitors, CRM sync) can
// react without polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Routing keys, one per lifecycle transition. Consumers bind with topic
// patterns like "conversation.*".
const (
	TypeConversationCreated   = "conversation.created"
	TypeConversationAssigned  = "conversation.assigned"
	TypeConversationEscalated = "conversation.escalated"
	TypeConversationResolved  = "conversation.resolved"
	TypeConversationReopened  = "conversation.reopened"
	TypeConversationClosed    = "conversation.closed"
	TypeAgentAvailability     = "agent.availability_changed"
	TypeBulkCompleted         = "bulk.completed"
)

// source identifies this service in event metadata.
const source = "switchboard"

// Meta carries event identity and provenance.
type Meta struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Type          string    `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	Source        string    `json:"source"`
}

// Envelope wraps an event payload with its metadata.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope builds an envelope for one event, assigning a fresh event ID.
func NewEnvelope(eventType string, data any) Envelope {
	return Envelope{
		Meta: Meta{
			ID:         uuid.NewString(),
			Type:       eventType,
			OccurredAt: time.Now().UTC(),
			Source:     source,
		},
		Data: data,
	}
}

// Publisher sends envelopes to an event bus.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

type rmqPublisher struct {
	conn     *amqp091.Connection
	exchange string
}

// New connects to RabbitMQ and declares the topic exchange. The returned
// publisher opens a short-lived channel per publish, so it is safe for
// concurrent use.
func New(url, exchange string) (Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial %s: %w", url, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", exchange, err)
	}

	return &rmqPublisher{conn: conn, exchange: exchange}, nil
}

// Publish sends one envelope, using its event type as the routing key.
func (p *rmqPublisher) Publish(ctx context.Context, env Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("events: open channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", env.Meta.Type, err)
	}

	err = ch.PublishWithContext(ctx, p.exchange, env.Meta.Type, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     env.Meta.ID,
			CorrelationId: env.Meta.CorrelationID,
			Timestamp:     env.Meta.OccurredAt,
			Body:          body,
		})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", env.Meta.Type, err)
	}
	return nil
}

func (p *rmqPublisher) Close() error {
	return p.conn.Close()
}

// Emit publishes an event best-effort: routing state changes must not fail
// because the event bus is down. A nil publisher disables emission.
func Emit(ctx context.Context, p Publisher, eventType string, data any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, NewEnvelope(eventType, data)); err != nil {
		log.Printf("events: emit %s: %v", eventType, err)
	}
}
