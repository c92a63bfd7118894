package engine

import (
	"context"
	"errors"
	"math"

	"github.com/septivank/city-signals/internal/auth"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/errs"
	"github.com/septivank/city-signals/internal/geo"
	"github.com/septivank/city-signals/internal/store"
	"go.uber.org/zap"
)

func proximityApplies(draft *db.Signal, actor auth.Actor) bool {
	return !actor.IsAdmin() &&
		isWasteReport(draft) &&
		draft.ReferenceID() != "" &&
		draft.Location != nil
}

// checkProximity rejects reporters standing too far from the referenced
// container. An unknown container does not block the submission.
func (e *Engine) checkProximity(ctx context.Context, draft *db.Signal, _ *Prepared) error {
	ref := draft.ReferenceID()
	container, err := store.FindContainerByPublicNumber(ctx, e.store, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	distance := geo.Distance(draft.Location.Lat(), draft.Location.Lon(), container.Location.Lat(), container.Location.Lon())
	if distance > e.cfg.MaxReportDistanceMeters {
		e.logger.Warn("signal rejected, reporter too far from container",
			zap.String("reference_id", ref),
			zap.Int64("distance_m", int64(math.Round(distance))),
			zap.Float64("max_m", e.cfg.MaxReportDistanceMeters),
		)
		return errs.TooFar(distance, e.cfg.MaxReportDistanceMeters)
	}
	return nil
}
