package service

import (
	"context"
	"errors"
	"time"

	"github.com/septivank/city-signals/internal/auth"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/errs"
	"github.com/septivank/city-signals/internal/logging"
	"github.com/septivank/city-signals/internal/mq"
	"github.com/septivank/city-signals/internal/nearby"
	"github.com/septivank/city-signals/internal/store"
	"go.uber.org/zap"
)

// ContainerService serves container lookups and maintenance
type ContainerService struct {
	store    store.Store
	searcher nearby.Searcher
	events   EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewContainerService creates a new container service
func NewContainerService(st store.Store, searcher nearby.Searcher, events EventPublisher, logger *zap.Logger) *ContainerService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ContainerService{
		store:    st,
		searcher: searcher,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Nearby returns containers around the query point, nearest first
func (s *ContainerService) Nearby(ctx context.Context, q nearby.Query) (store.Page[nearby.Result], error) {
	page, err := s.searcher.Search(ctx, q)
	if err != nil {
		s.logger.Error("nearby search failed",
			zap.Float64("latitude", q.Latitude),
			zap.Float64("longitude", q.Longitude),
			zap.Float64("radius", q.Radius),
			zap.Error(err),
		)
		return store.Page[nearby.Result]{}, errs.Infrastructure("failed to search nearby containers", err)
	}
	return page, nil
}

// WithOpenSignals lists containers that open waste-container signals
// point at, most reported first
func (s *ContainerService) WithOpenSignals(ctx context.Context, p store.Pagination) (store.Page[store.ContainerSignalCount], error) {
	page, err := s.store.FindContainersWithOpenSignals(ctx, p)
	if err != nil {
		s.logger.Error("failed to list containers with signals", zap.Int("page", p.Page), zap.Error(err))
		return store.Page[store.ContainerSignalCount]{}, errs.Infrastructure("failed to list containers with signals", err)
	}
	return page, nil
}

// Get returns a container by public number
func (s *ContainerService) Get(ctx context.Context, publicNumber string) (*db.WasteContainer, error) {
	c, err := store.FindContainerByPublicNumber(ctx, s.store, publicNumber)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.NotFound("waste container %s not found", publicNumber)
	}
	if err != nil {
		return nil, errs.Infrastructure("failed to load waste container", err)
	}
	return c, nil
}

// Clean records a collection: the container becomes active, its reported
// conditions are cleared and lastCleaned is stamped.
func (s *ContainerService) Clean(ctx context.Context, publicNumber string, actor auth.Actor, requestID string) (*db.WasteContainer, error) {
	if !actor.CanManageContainers() {
		return nil, errs.Forbidden("only container administrators can mark containers as cleaned")
	}
	logger := logging.WithRequestID(s.logger, requestID)

	c, err := s.Get(ctx, publicNumber)
	if err != nil {
		return nil, err
	}

	active := db.ContainerActive
	cleared := []db.ContainerCondition{}
	now := s.now().UTC()
	updated, err := s.store.UpdateContainer(ctx, c.ID, db.ContainerPatch{
		Status:      &active,
		State:       &cleared,
		LastCleaned: &now,
	})
	if err != nil {
		logger.Error("failed to clean container", zap.String("public_number", publicNumber), zap.Error(err))
		return nil, errs.Infrastructure("failed to update waste container", err)
	}

	logger.Info("container cleaned",
		zap.String("public_number", publicNumber),
		zap.String("role", string(actor.Role)),
	)
	publish(ctx, s.events, logger, mq.EventContainerCleaned, requestID, nil, updated)
	return updated, nil
}
