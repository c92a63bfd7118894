package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/septivank/city-signals/internal/db"
	"go.uber.org/zap"
)

// Event types, also used as routing keys
const (
	EventSignalCreated        = "signal.created"
	EventContainerProvisioned = "container.provisioned"
	EventContainerReconciled  = "container.reconciled"
	EventContainerCleaned     = "container.cleaned"
)

// Event is a domain event published after a committed change
type Event struct {
	Type       string             `json:"type"`
	RequestID  string             `json:"request_id,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
	Signal     *db.Signal         `json:"signal,omitempty"`
	Container  *db.WasteContainer `json:"container,omitempty"`
}

// Publisher sends domain events to a topic exchange
type Publisher struct {
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher opens a channel and declares the events exchange on it
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := declareTopicExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Publisher{channel: ch, exchange: exchange, logger: logger}, nil
}

// Publish sends the event to the events exchange, routed by its type
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		event.Type,
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published domain event",
		zap.String("routing_key", event.Type),
		zap.String("request_id", event.RequestID),
	)

	return nil
}

func newPublishing(event Event) (amqp.Publishing, error) {
	if event.Type == "" {
		return amqp.Publishing{}, fmt.Errorf("event type is empty")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     event.OccurredAt,
		Type:          event.Type,
		CorrelationId: event.RequestID,
	}, nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
