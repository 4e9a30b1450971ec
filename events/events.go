/*
Package events publishes mutation events to AMQP.

PURPOSE:
  Downstream consumers (notification delivery, export pipelines) learn
  about ledger mutations from a topic exchange. The service publishes
  after a successful commit and cache invalidation; a publish failure is
  logged and never fails the mutation it describes.

ROUTING KEYS:
  transaction.created | transaction.updated | transaction.deleted |
  transaction.restored | category.reordered | envelope.reordered

DISABLED MODE:
  An empty AMQP URL yields a Disabled publisher so callers never branch
  on configuration.
*/
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Event routing keys.
const (
	TransactionCreated  = "transaction.created"
	TransactionUpdated  = "transaction.updated"
	TransactionDeleted  = "transaction.deleted"
	TransactionRestored = "transaction.restored"
	CategoryReordered   = "category.reordered"
	EnvelopeReordered   = "envelope.reordered"
)

// Publisher emits mutation events.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
	Close() error
}

// envelope is the wire shape of every event.
type envelope struct {
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// =============================================================================
// AMQP PUBLISHER
// =============================================================================

type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      zerolog.Logger
}

// NewAMQP connects and declares a durable topic exchange. An empty URL
// returns the Disabled publisher instead of an error.
func NewAMQP(url, exchange string, log zerolog.Logger) (Publisher, error) {
	if url == "" {
		return Disabled{}, nil
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange, log: log}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal(envelope{Event: event, OccurredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		event, // routing key
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}

	p.log.Debug().Str("event", event).Str("exchange", p.exchange).Msg("published event")
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// =============================================================================
// DISABLED PUBLISHER
// =============================================================================

// Disabled drops every event. Used when no AMQP URL is configured.
type Disabled struct{}

func (Disabled) Publish(context.Context, string, any) error { return nil }
func (Disabled) Close() error                               { return nil }
