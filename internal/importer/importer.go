package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/store"
	"github.com/septivank/city-signals/tools/timeparser"
	"go.uber.org/zap"
)

const (
	defaultBatchSize     = 50
	collectionPointNote  = "Originally marked as collection point"
	recyclablesTypeMatch = "Цветни"
)

// LegacyContainer is one record of the legacy container export
type LegacyContainer struct {
	ID                string  `json:"id"`
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	Type              *string `json:"type"`
	Source            string  `json:"source"`
	Verified          bool    `json:"verified"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
	IsCollectionPoint bool    `json:"is_collection_point"`
}

// Result summarizes an import run
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Importer loads legacy containers into the store
type Importer struct {
	store     store.Store
	logger    *zap.Logger
	batchSize int
}

// New creates an importer that logs progress after every batch
func New(st store.Store, logger *zap.Logger, batchSize int) *Importer {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	return &Importer{store: st, logger: logger, batchSize: batchSize}
}

// ReadFile decodes a legacy export file
func ReadFile(path string) ([]LegacyContainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy export: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a JSON array of legacy containers
func Decode(r io.Reader) ([]LegacyContainer, error) {
	var rows []LegacyContainer
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode legacy export: %w", err)
	}
	return rows, nil
}

// Map converts the legacy row at position index (0-based) into a container.
// Public numbers follow the row position so re-runs assign the same numbers.
func Map(index int, row LegacyContainer) (*db.WasteContainer, error) {
	if row.ID == "" {
		return nil, errors.New("legacy id is empty")
	}
	if row.Lat < -90 || row.Lat > 90 || row.Lng < -180 || row.Lng > 180 {
		return nil, fmt.Errorf("coordinates out of range: %v,%v", row.Lat, row.Lng)
	}

	c := &db.WasteContainer{
		LegacyID:       row.ID,
		PublicNumber:   fmt.Sprintf("SOF-%04d", index+1),
		Location:       orb.Point{row.Lng, row.Lat},
		CapacityVolume: 3,
		CapacitySize:   db.CapacityStandard,
		BinCount:       1,
		WasteType:      db.WasteGeneral,
		Source:         mapSource(row.Source),
		Status:         db.ContainerActive,
		State:          []db.ContainerCondition{},
	}
	if row.Type != nil && strings.HasPrefix(*row.Type, recyclablesTypeMatch) {
		c.WasteType = db.WasteRecyclables
	}
	if row.IsCollectionPoint {
		c.CapacitySize = db.CapacityIndustrial
		c.Notes = collectionPointNote
	}

	if row.CreatedAt != "" {
		created, err := timeparser.ParseLegacyTimestamp(row.CreatedAt)
		if err != nil {
			return nil, err
		}
		c.CreatedAt = created
	}
	return c, nil
}

func mapSource(s string) db.ContainerSource {
	switch db.ContainerSource(s) {
	case db.SourceOfficial:
		return db.SourceOfficial
	case db.SourceThirdParty:
		return db.SourceThirdParty
	default:
		return db.SourceCommunity
	}
}

// Run imports rows batch by batch. Rows whose legacy id is already stored
// are skipped; failing rows are counted and logged and do not stop the run.
func (im *Importer) Run(ctx context.Context, rows []LegacyContainer) (Result, error) {
	var res Result
	im.logger.Info("starting legacy container import", zap.Int("rows", len(rows)))

	for start := 0; start < len(rows); start += im.batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(start+im.batchSize, len(rows))

		for i := start; i < end; i++ {
			im.importRow(ctx, i, rows[i], &res)
		}

		im.logger.Info("batch processed",
			zap.Int("processed", end),
			zap.Int("imported", res.Imported),
			zap.Int("skipped", res.Skipped),
			zap.Int("errors", res.Errors),
		)
	}

	im.logger.Info("legacy container import completed",
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors),
	)
	return res, nil
}

func (im *Importer) importRow(ctx context.Context, index int, row LegacyContainer, res *Result) {
	logger := im.logger.With(zap.String("legacy_id", row.ID), zap.Int("row", index+1))

	if row.ID != "" {
		existing, err := im.store.FindContainers(ctx, store.ContainerFilter{LegacyID: row.ID}, store.Pagination{Page: 1, Limit: 1})
		if err != nil {
			logger.Error("failed to look up legacy container", zap.Error(err))
			res.Errors++
			return
		}
		if len(existing.Docs) > 0 {
			res.Skipped++
			return
		}
	}

	c, err := Map(index, row)
	if err != nil {
		logger.Warn("invalid legacy container", zap.Error(err))
		res.Errors++
		return
	}

	if err := im.store.CreateContainer(ctx, c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.Warn("container already exists", zap.String("public_number", c.PublicNumber))
			res.Skipped++
			return
		}
		logger.Error("failed to create container", zap.Error(err))
		res.Errors++
		return
	}
	res.Imported++
}
