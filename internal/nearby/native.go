package nearby

import (
	"context"
	"fmt"
	"time"

	"github.com/septivank/city-signals/internal/store"
)

// RowSource runs a spatial distance query directly against the store and
// returns driver-level rows together with the total number of matches.
// Rows must already be filtered by radius and ordered by distance.
type RowSource interface {
	NearbyContainerRows(ctx context.Context, lon, lat, radius float64, limit, offset int) ([]map[string]any, int, error)
}

// Native answers searches with a spatial query pushed down to the store
type Native struct {
	rows RowSource
}

func NewNative(rows RowSource) *Native {
	return &Native{rows: rows}
}

func (s *Native) Search(ctx context.Context, q Query) (store.Page[Result], error) {
	defer observe(StrategyNative, time.Now())

	p := q.Pagination()
	rows, total, err := s.rows.NearbyContainerRows(ctx, q.Longitude, q.Latitude, q.Radius, p.Limit, p.Offset())
	if err != nil {
		return store.Page[Result]{}, fmt.Errorf("failed to query nearby containers: %w", err)
	}

	docs := make([]Result, 0, len(rows))
	for i, row := range rows {
		r, err := NormalizeContainerRow(row)
		if err != nil {
			return store.Page[Result]{}, fmt.Errorf("failed to normalize row %d: %w", i, err)
		}
		docs = append(docs, r)
	}

	return store.NewPage(docs, total, p), nil
}
