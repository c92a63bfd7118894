package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/septivank/city-signals/internal/auth"
	"github.com/septivank/city-signals/internal/logging"
	"github.com/septivank/city-signals/internal/validator"
	"go.uber.org/zap"
)

// SubmissionMessage is a signal submission delivered through RabbitMQ
type SubmissionMessage struct {
	RequestID  string                `json:"request_id"`
	ReceivedAt time.Time             `json:"received_at"`
	Signal     validator.SignalInput `json:"signal"`
}

// ProcessMessage handles one queued submission. Queued submissions carry
// no credentials and run as the anonymous actor.
func (s *SignalService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg SubmissionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	reqLogger := logging.WithRequestID(s.logger, msg.RequestID)
	reqLogger.Info("processing queued signal",
		zap.String("category", msg.Signal.Category),
		zap.Time("received_at", msg.ReceivedAt),
	)

	signal, err := s.Submit(ctx, msg.Signal, auth.Anonymous, msg.RequestID)
	if err != nil {
		return fmt.Errorf("failed to submit queued signal: %w", err)
	}

	reqLogger.Info("queued signal processed", zap.String("signal_id", signal.ID.String()))
	return nil
}
