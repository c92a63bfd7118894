package mq

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the part of *amqp.Channel the consumer and publisher use
type amqpChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// ingestTopology names the exchange, queues and binding of the ingest path
type ingestTopology struct {
	Exchange   string
	RoutingKey string
	Queue      string
	DLQ        string
	Prefetch   int
}

// deadLetterArgs route rejected ingest messages to the DLQ through the
// default exchange
func (t ingestTopology) deadLetterArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": t.DLQ,
	}
}

func declareTopicExchange(ch amqpChannel, name string) error {
	if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	return nil
}

// declare sets up the ingest topology on ch. The DLQ is declared before the
// queue that dead-letters into it. A queue that already exists with other
// arguments is a startup error: the broker closes the channel on the
// mismatch and a queue without dead-lettering would drop rejected messages.
func (t ingestTopology) declare(ch amqpChannel) error {
	if err := ch.Qos(t.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch %d: %w", t.Prefetch, err)
	}
	if err := declareTopicExchange(ch, t.Exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(t.DLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue %s: %w", t.DLQ, err)
	}

	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, t.deadLetterArgs()); err != nil {
		var amqpErr *amqp.Error
		if errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed {
			return fmt.Errorf("queue %s exists without dead-lettering to %s; delete it or recreate it with matching arguments: %w",
				t.Queue, t.DLQ, err)
		}
		return fmt.Errorf("declare queue %s: %w", t.Queue, err)
	}

	if err := ch.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s with %q: %w", t.Queue, t.Exchange, t.RoutingKey, err)
	}
	return nil
}
