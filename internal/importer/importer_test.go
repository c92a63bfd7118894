package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/store"
	"go.uber.org/zap"
)

const export = `[
	{"id": "a1", "lat": 42.6977, "lng": 23.3219, "type": null, "source": "official", "verified": true,
	 "created_at": "2023-05-10 08:30:00.123456+00", "updated_at": "2023-05-11 08:30:00+00", "is_collection_point": false},
	{"id": "a2", "lat": 42.70, "lng": 23.33, "type": "Цветни контейнери", "source": "third_party", "verified": false,
	 "created_at": "2023-05-10T08:30:00Z", "updated_at": "", "is_collection_point": true},
	{"id": "a3", "lat": 142.0, "lng": 23.33, "type": "", "source": "", "verified": false,
	 "created_at": "", "updated_at": "", "is_collection_point": false},
	{"id": "a4", "lat": 42.71, "lng": 23.34, "type": "Битови", "source": "unknown", "verified": false,
	 "created_at": "", "updated_at": "", "is_collection_point": false}
]`

func TestMap(t *testing.T) {
	rows, err := Decode(strings.NewReader(export))
	if err != nil {
		t.Fatal(err)
	}

	c, err := Map(0, rows[0])
	if err != nil {
		t.Fatal(err)
	}
	if c.PublicNumber != "SOF-0001" || c.LegacyID != "a1" {
		t.Errorf("Unexpected identifiers %s / %s", c.PublicNumber, c.LegacyID)
	}
	if c.Location.Lon() != 23.3219 || c.Location.Lat() != 42.6977 {
		t.Errorf("Expected [lng, lat] location, got %v", c.Location)
	}
	if c.WasteType != db.WasteGeneral || c.Source != db.SourceOfficial || c.CapacitySize != db.CapacityStandard {
		t.Errorf("Unexpected mapping %+v", c)
	}
	if c.CapacityVolume != 3 || c.Status != db.ContainerActive || c.Notes != "" {
		t.Errorf("Unexpected defaults %+v", c)
	}
	want := time.Date(2023, 5, 10, 8, 30, 0, 123456000, time.UTC)
	if !c.CreatedAt.Equal(want) {
		t.Errorf("Expected created at %s, got %s", want, c.CreatedAt)
	}

	c, err = Map(1, rows[1])
	if err != nil {
		t.Fatal(err)
	}
	if c.PublicNumber != "SOF-0002" || c.WasteType != db.WasteRecyclables || c.Source != db.SourceThirdParty {
		t.Errorf("Unexpected mapping %+v", c)
	}
	if c.CapacitySize != db.CapacityIndustrial || c.Notes != collectionPointNote {
		t.Errorf("Expected collection point mapping, got %+v", c)
	}

	if _, err := Map(2, rows[2]); err == nil {
		t.Error("Expected out of range latitude to fail")
	}

	c, _ = Map(3, rows[3])
	if c.Source != db.SourceCommunity || c.WasteType != db.WasteGeneral {
		t.Errorf("Expected fallback mapping, got %+v", c)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	rows, _ := Decode(strings.NewReader(export))
	m := store.NewMemory()
	im := New(m, zap.NewNop(), 2)

	res, err := im.Run(ctx, rows)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{Imported: 3, Errors: 1}) {
		t.Errorf("Unexpected first run %+v", res)
	}

	c, err := store.FindContainerByPublicNumber(ctx, m, "SOF-0004")
	if err != nil || c.LegacyID != "a4" {
		t.Errorf("Expected numbering by row position, got %+v, %v", c, err)
	}

	res, err = im.Run(ctx, rows)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{Skipped: 3, Errors: 1}) {
		t.Errorf("Expected re-run to skip existing rows, got %+v", res)
	}
}

type failingStore struct {
	*store.Memory
}

func (f failingStore) CreateContainer(context.Context, *db.WasteContainer) error {
	return errors.New("connection reset")
}

func TestRun_CountsStoreFailures(t *testing.T) {
	rows, _ := Decode(strings.NewReader(export))
	res, err := New(failingStore{store.NewMemory()}, zap.NewNop(), 0).Run(context.Background(), rows)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 0 || res.Errors != 4 {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	rows, _ := Decode(strings.NewReader(export))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(store.NewMemory(), zap.NewNop(), 0).Run(ctx, rows); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"id": 1}`)); err == nil {
		t.Error("Expected error for non-array export")
	}
}
