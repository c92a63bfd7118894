package service

import (
	"context"
	"time"

	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/metrics"
	"github.com/septivank/city-signals/internal/mq"
	"go.uber.org/zap"
)

// EventPublisher delivers domain events; *mq.Publisher implements it
type EventPublisher interface {
	Publish(ctx context.Context, event mq.Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, mq.Event) error { return nil }

// publish sends an event after the change it describes was committed.
// Failures are logged and counted only.
func publish(ctx context.Context, p EventPublisher, logger *zap.Logger, eventType, requestID string, signal *db.Signal, container *db.WasteContainer) {
	event := mq.Event{
		Type:       eventType,
		RequestID:  requestID,
		OccurredAt: time.Now().UTC(),
		Signal:     signal,
		Container:  container,
	}
	if err := p.Publish(ctx, event); err != nil {
		metrics.EventsPublishFailedTotal.WithLabelValues(eventType).Inc()
		logger.Error("failed to publish event",
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
