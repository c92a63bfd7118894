package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// MessageHandler processes one delivery body. A returned error dead-letters
// the message; there is no redelivery.
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer feeds ingest queue deliveries to a MessageHandler
type Consumer struct {
	channel          amqpChannel
	queue            string
	prefetchCount    int
	logger           *zap.Logger
	messageProcessor MessageHandler
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Connection       *Connection
	Queue            string
	DLQQueue         string
	Exchange         string
	RoutingKey       string
	PrefetchCount    int
	Logger           *zap.Logger
	MessageProcessor MessageHandler
}

func (cfg ConsumerConfig) topology() ingestTopology {
	return ingestTopology{
		Exchange:   cfg.Exchange,
		RoutingKey: cfg.RoutingKey,
		Queue:      cfg.Queue,
		DLQ:        cfg.DLQQueue,
		Prefetch:   cfg.PrefetchCount,
	}
}

// NewConsumer opens a channel and declares the ingest topology on it
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	return newConsumer(ch, cfg)
}

func newConsumer(ch amqpChannel, cfg ConsumerConfig) (*Consumer, error) {
	if err := cfg.topology().declare(ch); err != nil {
		// the broker may already have closed ch
		_ = ch.Close()
		return nil, err
	}
	cfg.Logger.Debug("ingest topology declared",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue),
		zap.String("dlq", cfg.DLQQueue),
	)

	return &Consumer{
		channel:          ch,
		queue:            cfg.Queue,
		prefetchCount:    cfg.PrefetchCount,
		logger:           cfg.Logger,
		messageProcessor: cfg.MessageProcessor,
	}, nil
}

// Start begins delivery. Messages are handled one at a time until ctx is
// cancelled or the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consumer started",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetchCount),
	)

	go c.loop(ctx, deliveries)
	return nil
}

func (c *Consumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", zap.String("queue", c.queue))
			return
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed by broker", zap.String("queue", c.queue))
				return
			}
			c.processMessage(ctx, d)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, d amqp.Delivery) {
	logger := c.logger.With(
		zap.String("message_id", d.MessageId),
		zap.String("routing_key", d.RoutingKey),
	)
	logger.Debug("delivery received", zap.Int("bytes", len(d.Body)))

	if err := c.messageProcessor(ctx, d.Body); err != nil {
		logger.Error("submission rejected, dead-lettering", zap.Error(err))
		// requeue=false routes through the queue's dead-letter exchange
		if err := d.Nack(false, false); err != nil {
			logger.Error("nack failed", zap.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		logger.Error("ack failed", zap.Error(err))
		return
	}
	logger.Debug("delivery acknowledged")
}

// Close closes the consumer channel
func (c *Consumer) Close() error {
	if c.channel == nil {
		return nil
	}
	return c.channel.Close()
}

// RegisterLifecycle starts the consumer with the application and stops it,
// together with ctx, on shutdown.
func (c *Consumer) RegisterLifecycle(lc fx.Lifecycle, ctx context.Context, cancel context.CancelFunc) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return c.Start(ctx)
		},
		OnStop: func(context.Context) error {
			cancel()
			if err := c.Close(); err != nil {
				c.logger.Error("failed to close consumer channel", zap.Error(err))
				return err
			}
			c.logger.Info("consumer stopped", zap.String("queue", c.queue))
			return nil
		},
	})
}
