package engine

import (
	"context"
	"errors"
	"slices"

	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/metrics"
	"github.com/septivank/city-signals/internal/store"
	"go.uber.org/zap"
)

// AfterCreate folds the committed signal's reported conditions into its
// container. It never fails: errors are logged and the container is left
// as it was. The updated container is returned when something changed.
func (e *Engine) AfterCreate(ctx context.Context, signal *db.Signal) *db.WasteContainer {
	if !isWasteReport(signal) || signal.ReferenceID() == "" {
		return nil
	}

	updated, err := e.reconcile(ctx, signal)
	if err != nil {
		e.logger.Error("failed to update container for signal",
			zap.String("signal_id", signal.ID.String()),
			zap.String("reference_id", signal.ReferenceID()),
			zap.Error(err),
		)
		metrics.StepFailOpenTotal.WithLabelValues("reconcile").Inc()
		return nil
	}
	return updated
}

func (e *Engine) reconcile(ctx context.Context, signal *db.Signal) (*db.WasteContainer, error) {
	if len(signal.ContainerState) == 0 {
		return nil, nil
	}

	container, err := store.FindContainerByPublicNumber(ctx, e.store, signal.ReferenceID())
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	patch := ReconcilePatch(container, signal.ContainerState)
	if patch.IsEmpty() {
		return nil, nil
	}

	updated, err := e.store.UpdateContainer(ctx, container.ID, patch)
	if err != nil {
		return nil, err
	}
	metrics.ContainersReconciledTotal.Inc()

	e.logger.Info("container updated from signal",
		zap.String("signal_id", signal.ID.String()),
		zap.String("public_number", container.PublicNumber),
		zap.String("status", string(updated.Status)),
		zap.Strings("state", conditionStrings(updated.State)),
	)
	return updated, nil
}

// ReconcilePatch returns the changes that reported conditions cause on a
// container: status becomes full and the state becomes the union of the
// current and reported conditions, in first-seen order. Unchanged fields
// are left out of the patch.
func ReconcilePatch(container *db.WasteContainer, reported []db.ContainerCondition) db.ContainerPatch {
	var patch db.ContainerPatch
	if len(reported) == 0 {
		return patch
	}

	if container.Status != db.ContainerFull {
		full := db.ContainerFull
		patch.Status = &full
	}

	merged := MergeConditions(container.State, reported)
	if !slices.Equal(merged, container.State) {
		patch.State = &merged
	}
	return patch
}

// MergeConditions returns the de-duplicated union of current and reported
func MergeConditions(current, reported []db.ContainerCondition) []db.ContainerCondition {
	seen := make(map[db.ContainerCondition]struct{}, len(current)+len(reported))
	merged := make([]db.ContainerCondition, 0, len(current)+len(reported))
	for _, list := range [][]db.ContainerCondition{current, reported} {
		for _, c := range list {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			merged = append(merged, c)
		}
	}
	return merged
}

func conditionStrings(in []db.ContainerCondition) []string {
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = string(c)
	}
	return out
}
