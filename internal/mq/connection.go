package mq

import (
	"context"
	"fmt"
	"net/url"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Connection is the broker connection shared by the consumer and the
// publisher. Each of them opens its own channel.
type Connection struct {
	conn *amqp.Connection
}

// NewConnection dials the broker and closes the connection on shutdown
func NewConnection(lc fx.Lifecycle, logger *zap.Logger, rawURL string) (*Connection, error) {
	target := redactURL(rawURL)

	conn, err := amqp.Dial(rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq at %s (check RABBITMQ_URL and that the broker is running): %w", target, err)
	}
	logger.Info("rabbitmq connected", zap.String("url", target))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if conn.IsClosed() {
				return nil
			}
			if err := conn.Close(); err != nil {
				logger.Error("failed to close rabbitmq connection", zap.String("url", target), zap.Error(err))
				return err
			}
			logger.Info("rabbitmq connection closed", zap.String("url", target))
			return nil
		},
	})

	return &Connection{conn: conn}, nil
}

// Channel opens a new channel on the connection
func (c *Connection) Channel() (*amqp.Channel, error) {
	return c.conn.Channel()
}

// redactURL hides the password of an amqp URL for logging
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
