package nearby

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/geo"
	"github.com/septivank/city-signals/internal/metrics"
	"github.com/septivank/city-signals/internal/store"
)

// Strategy names accepted in configuration
const (
	StrategyInProcess = "inprocess"
	StrategyNative    = "native"
)

// Result is a container annotated with its distance in meters from the query point
type Result struct {
	db.WasteContainer
	Distance float64 `json:"distance"`
}

// Searcher finds containers within a radius of a point, nearest first.
// Every implementation returns the same document shape and page metadata.
type Searcher interface {
	Search(ctx context.Context, q Query) (store.Page[Result], error)
}

// InProcess answers searches with generic store queries: a bounding-box
// prefilter followed by exact distance filtering and sorting in Go.
type InProcess struct {
	store     store.Store
	batchSize int
}

// NewInProcess creates an in-process searcher reading batchSize containers per store page
func NewInProcess(st store.Store, batchSize int) *InProcess {
	if batchSize < 1 {
		batchSize = 500
	}
	return &InProcess{store: st, batchSize: batchSize}
}

func (s *InProcess) Search(ctx context.Context, q Query) (store.Page[Result], error) {
	defer observe(StrategyInProcess, time.Now())

	bounds := geo.BoundingBox(q.Latitude, q.Longitude, q.Radius)
	filter := store.ContainerFilter{Within: &bounds}

	seen := make(map[uuid.UUID]struct{})
	var matches []Result
	for page := 1; ; page++ {
		batch, err := s.store.FindContainers(ctx, filter, store.Pagination{Page: page, Limit: s.batchSize})
		if err != nil {
			return store.Page[Result]{}, fmt.Errorf("failed to scan containers: %w", err)
		}
		for _, c := range batch.Docs {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}

			d := geo.Distance(q.Latitude, q.Longitude, c.Location.Lat(), c.Location.Lon())
			if d <= q.Radius {
				matches = append(matches, Result{WasteContainer: c, Distance: d})
			}
		}
		if !batch.HasNextPage {
			break
		}
	}

	SortResults(matches)

	p := q.Pagination()
	docs := []Result{}
	for i := p.Offset(); i < len(matches) && len(docs) < p.Limit; i++ {
		docs = append(docs, matches[i])
	}
	return store.NewPage(docs, len(matches), p), nil
}

// SortResults orders results by ascending distance, then public number
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].PublicNumber < results[j].PublicNumber
	})
}

func observe(strategy string, start time.Time) {
	metrics.NearbyRequestsTotal.WithLabelValues(strategy).Inc()
	metrics.NearbyDurationMs.WithLabelValues(strategy).Observe(float64(time.Since(start).Milliseconds()))
}
