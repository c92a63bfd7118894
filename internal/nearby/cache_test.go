package nearby_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/septivank/city-signals/internal/nearby"
	"github.com/septivank/city-signals/internal/store"
	"go.uber.org/zap"
)

type countingSearcher struct {
	next  nearby.Searcher
	calls int
}

func (c *countingSearcher) Search(ctx context.Context, q nearby.Query) (store.Page[nearby.Result], error) {
	c.calls++
	return c.next.Search(ctx, q)
}

func TestCached_ServesRepeatedQueriesFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	m, _ := seed(t, 4)
	inner := &countingSearcher{next: nearby.NewInProcess(m, 0)}
	cached := nearby.NewCached(inner, rc, time.Minute, zap.NewNop())

	q := nearby.Query{Latitude: centerLat, Longitude: centerLon, Radius: 1000, Page: 1, Limit: 10}
	first, err := cached.Search(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cached.Search(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}

	if inner.calls != 1 {
		t.Errorf("expected 1 underlying search, got %d", inner.calls)
	}
	if len(first.Docs) != len(second.Docs) || first.TotalDocs != second.TotalDocs {
		t.Fatalf("cached page differs: %+v vs %+v", first, second)
	}
	for i := range first.Docs {
		if first.Docs[i].ID != second.Docs[i].ID || first.Docs[i].Distance != second.Docs[i].Distance {
			t.Errorf("doc %d differs after cache round trip", i)
		}
	}

	mr.FastForward(2 * time.Minute)
	if _, err := cached.Search(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("expected expired entry to be refreshed, got %d calls", inner.calls)
	}
}

func TestCached_FallsThroughWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rc.Close()
	mr.Close()

	m, _ := seed(t, 2)
	inner := &countingSearcher{next: nearby.NewInProcess(m, 0)}
	cached := nearby.NewCached(inner, rc, time.Minute, zap.NewNop())

	page, err := cached.Search(context.Background(), nearby.Query{Latitude: centerLat, Longitude: centerLon, Radius: 1000, Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("expected search to succeed without redis, got %v", err)
	}
	if page.TotalDocs != 2 || inner.calls != 1 {
		t.Errorf("unexpected result: total=%d calls=%d", page.TotalDocs, inner.calls)
	}
}

func TestCached_CloseRadiiAreDistinctEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	m, _ := seed(t, 2)
	inner := &countingSearcher{next: nearby.NewInProcess(m, 0)}
	cached := nearby.NewCached(inner, rc, time.Minute, zap.NewNop())

	for _, radius := range []float64{100, 100.04, 100} {
		q := nearby.Query{Latitude: centerLat, Longitude: centerLon, Radius: radius, Page: 1, Limit: 10}
		if _, err := cached.Search(context.Background(), q); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("expected radius 100.04 to miss and 100 to hit, got %d underlying searches", inner.calls)
	}
	if n := len(mr.Keys()); n != 2 {
		t.Errorf("expected 2 cache entries, got %d", n)
	}
}
