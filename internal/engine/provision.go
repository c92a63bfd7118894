package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/septivank/city-signals/internal/auth"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/metrics"
	"go.uber.org/zap"
)

// provisionApplies matches waste reports about a container that has no
// public number yet.
//
// TODO: look for an existing container within a few meters before creating
// a new one; reports next to a known but unreferenced container currently
// produce a second record.
func provisionApplies(draft *db.Signal, _ auth.Actor) bool {
	return isWasteReport(draft) &&
		draft.ObjectType() == db.ObjectWasteContainer &&
		draft.ReferenceID() == "" &&
		draft.Location != nil
}

// provisionContainer creates a community container at the reporter's
// location and points the draft at it.
func (e *Engine) provisionContainer(ctx context.Context, draft *db.Signal, prep *Prepared) error {
	d := e.cfg.Defaults
	name := draft.CityObject.Name
	if name == "" {
		name = d.DefaultName
	}

	container := &db.WasteContainer{
		PublicNumber:   e.cfg.PublicNumberPrefix + uuid.New().String(),
		Location:       *draft.Location,
		Address:        draft.Address,
		CapacityVolume: d.CapacityVolume,
		CapacitySize:   d.CapacitySize,
		BinCount:       1,
		WasteType:      d.WasteType,
		Source:         db.SourceCommunity,
		Status:         d.Status,
		State:          []db.ContainerCondition{},
		Notes:          d.NotePrefix + name,
	}
	if err := e.store.CreateContainer(ctx, container); err != nil {
		return fmt.Errorf("failed to create container %s: %w", container.PublicNumber, err)
	}

	draft.CityObject.ReferenceID = container.PublicNumber
	prep.Provisioned = container
	metrics.ContainersProvisionedTotal.Inc()

	e.logger.Info("auto-created waste container from signal",
		zap.String("public_number", container.PublicNumber),
		zap.String("container_id", container.ID.String()),
	)
	return nil
}
