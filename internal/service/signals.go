package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/septivank/city-signals/internal/auth"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/engine"
	"github.com/septivank/city-signals/internal/errs"
	"github.com/septivank/city-signals/internal/logging"
	"github.com/septivank/city-signals/internal/metrics"
	"github.com/septivank/city-signals/internal/mq"
	"github.com/septivank/city-signals/internal/store"
	"github.com/septivank/city-signals/internal/validator"
	"go.uber.org/zap"
)

// SignalService handles signal submission and follow-up edits
type SignalService struct {
	store     store.Store
	engine    *engine.Engine
	validator *validator.Validator
	events    EventPublisher
	logger    *zap.Logger
}

// NewSignalService creates a new signal service
func NewSignalService(
	st store.Store,
	eng *engine.Engine,
	v *validator.Validator,
	events EventPublisher,
	logger *zap.Logger,
) *SignalService {
	if events == nil {
		events = NopPublisher{}
	}
	return &SignalService{
		store:     st,
		engine:    eng,
		validator: v,
		events:    events,
		logger:    logger,
	}
}

// Submit validates, checks and stores a new signal, then reconciles its
// container. The returned error is an *errs.Error.
func (s *SignalService) Submit(ctx context.Context, in validator.SignalInput, actor auth.Actor, requestID string) (*db.Signal, error) {
	logger := logging.WithRequestID(s.logger, requestID)

	draft, err := s.validator.ValidateSignal(in, actor)
	if err != nil {
		metrics.SignalSubmissionsTotal.WithLabelValues("rejected_validation").Inc()
		logger.Warn("signal rejected by validation", zap.Error(err))
		return nil, err
	}

	prep, err := s.engine.BeforeCreate(ctx, draft, actor)
	if err != nil {
		countRejection(err)
		return nil, err
	}

	if err := s.store.CreateSignal(ctx, draft); err != nil {
		if errors.Is(err, store.ErrConflict) {
			metrics.SignalSubmissionsTotal.WithLabelValues("rejected_policy").Inc()
			return nil, s.duplicateOf(ctx, draft, logger)
		}
		metrics.SignalSubmissionsTotal.WithLabelValues("failed").Inc()
		logger.Error("failed to save signal", zap.Error(err))
		if prep.Provisioned != nil {
			logger.Warn("provisioned container is not referenced by any signal",
				zap.String("public_number", prep.Provisioned.PublicNumber))
		}
		return nil, errs.Infrastructure("failed to save signal", err)
	}

	logger.Info("signal created",
		zap.String("signal_id", draft.ID.String()),
		zap.String("category", string(draft.Category)),
		zap.String("reference_id", draft.ReferenceID()),
	)
	metrics.SignalSubmissionsTotal.WithLabelValues("accepted").Inc()

	reconciled := s.engine.AfterCreate(ctx, draft)

	publish(ctx, s.events, logger, mq.EventSignalCreated, requestID, draft, nil)
	if prep.Provisioned != nil {
		publish(ctx, s.events, logger, mq.EventContainerProvisioned, requestID, nil, prep.Provisioned)
	}
	if reconciled != nil {
		publish(ctx, s.events, logger, mq.EventContainerReconciled, requestID, draft, reconciled)
	}

	return draft, nil
}

// duplicateOf builds the rejection for a submission that lost the race
// against a concurrent open report.
func (s *SignalService) duplicateOf(ctx context.Context, draft *db.Signal, logger *zap.Logger) error {
	existing, err := engine.FindOpenReport(ctx, s.store, draft.ReporterUniqueID, draft.ReferenceID())
	if err != nil || existing == nil {
		logger.Warn("duplicate signal rejected by store constraint", zap.Error(err))
		return errs.Duplicate("")
	}
	logger.Warn("duplicate signal rejected by store constraint",
		zap.String("existing_signal_id", existing.ID.String()))
	return errs.Duplicate(existing.ID.String())
}

// Get returns a signal by id
func (s *SignalService) Get(ctx context.Context, id string) (*db.Signal, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, errs.NotFound("signal %s not found", id)
	}
	signal, err := s.store.FindSignalByID(ctx, sid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.NotFound("signal %s not found", id)
	}
	if err != nil {
		return nil, errs.Infrastructure("failed to load signal", err)
	}
	return signal, nil
}

// Update applies a partial update. Administrators may edit any signal;
// everyone else must present the reporterUniqueId the signal was filed with.
func (s *SignalService) Update(ctx context.Context, id string, in validator.SignalUpdateInput, actor auth.Actor, requestID string) (*db.Signal, error) {
	logger := logging.WithRequestID(s.logger, requestID)

	current, err := s.Get(ctx, id)
	if err != nil {
		if !actor.IsAdmin() {
			logger.Warn("denying update, signal lookup failed", zap.String("signal_id", id), zap.Error(err))
			return nil, errs.Forbidden("not allowed to update this signal")
		}
		return nil, err
	}

	if !actor.IsAdmin() && (in.ReporterUniqueID == "" || in.ReporterUniqueID != current.ReporterUniqueID) {
		return nil, errs.Forbidden("not allowed to update this signal")
	}

	patch, err := s.validator.ValidateSignalUpdate(in, current, actor)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return current, nil
	}

	updated, err := s.store.UpdateSignal(ctx, current.ID, patch)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, s.duplicateOf(ctx, current, logger)
		}
		logger.Error("failed to update signal", zap.String("signal_id", id), zap.Error(err))
		return nil, errs.Infrastructure("failed to update signal", err)
	}

	logger.Info("signal updated",
		zap.String("signal_id", id),
		zap.String("status", string(updated.Status)),
		zap.String("role", string(actor.Role)),
	)
	return updated, nil
}

func countRejection(err error) {
	switch errs.KindOf(err) {
	case errs.KindPolicy:
		metrics.SignalSubmissionsTotal.WithLabelValues("rejected_policy").Inc()
	case errs.KindValidation:
		metrics.SignalSubmissionsTotal.WithLabelValues("rejected_validation").Inc()
	default:
		metrics.SignalSubmissionsTotal.WithLabelValues("failed").Inc()
	}
}
