package nearby

import (
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/septivank/city-signals/internal/db"
)

func TestNormalizeContainerRow_DriverShapes(t *testing.T) {
	id := uuid.New()
	raw, err := ewkb.Marshal(orb.Point{23.3219, 42.6977}, 4326)
	if err != nil {
		t.Fatal(err)
	}
	cleaned := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	r, err := NormalizeContainerRow(map[string]any{
		"id":              [16]byte(id),
		"public_number":   "SOF-0042",
		"location":        hex.EncodeToString(raw),
		"capacity_volume": "3.5",
		"bin_count":       int64(2),
		"waste_type":      "recyclables",
		"state":           "{full,dirty}",
		"last_cleaned":    cleaned,
		"distance":        "12.5",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.ID != id || r.PublicNumber != "SOF-0042" {
		t.Errorf("identity not preserved: %+v", r)
	}
	if r.Location != (orb.Point{23.3219, 42.6977}) {
		t.Errorf("unexpected location %v", r.Location)
	}
	if r.CapacityVolume != 3.5 || r.BinCount != 2 || r.Distance != 12.5 {
		t.Errorf("numeric columns not converted: %+v", r)
	}
	if r.WasteType != db.WasteRecyclables {
		t.Errorf("unexpected waste type %q", r.WasteType)
	}
	if len(r.State) != 2 || r.State[0] != db.ConditionFull || r.State[1] != db.ConditionDirty {
		t.Errorf("unexpected state %v", r.State)
	}
	if r.LastCleaned == nil || !r.LastCleaned.Equal(cleaned) {
		t.Errorf("unexpected lastCleaned %v", r.LastCleaned)
	}
}

func TestNormalizeContainerRow_CamelCaseAndGeoJSON(t *testing.T) {
	id := uuid.New()
	r, err := NormalizeContainerRow(map[string]any{
		"id":             id.String(),
		"publicNumber":   "SOF-WASTE-abc",
		"location":       `{"type":"Point","coordinates":[23.1,42.5]}`,
		"capacityVolume": json.Number("3"),
		"state":          []any{"full"},
		"distance":       7.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID != id || r.Location != (orb.Point{23.1, 42.5}) || r.CapacityVolume != 3 {
		t.Errorf("unexpected result %+v", r)
	}
	if r.BinCount != 1 {
		t.Errorf("expected default bin count 1, got %d", r.BinCount)
	}
}

func TestNormalizeContainerRow_CoordinatePairAndColumns(t *testing.T) {
	r, err := NormalizeContainerRow(map[string]any{
		"id":            uuid.New(),
		"public_number": "SOF-1",
		"location":      []any{23.0, "42.0"},
		"distance":      1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.Location != (orb.Point{23, 42}) {
		t.Errorf("unexpected location %v", r.Location)
	}
	if r.State == nil {
		t.Error("state must never be nil")
	}

	r, err = NormalizeContainerRow(map[string]any{
		"id":            uuid.New(),
		"public_number": "SOF-2",
		"longitude":     23.5,
		"latitude":      42.5,
		"distance":      1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.Location != (orb.Point{23.5, 42.5}) {
		t.Errorf("unexpected location %v", r.Location)
	}
}

func TestNormalizeContainerRow_Errors(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"id":            uuid.New(),
			"public_number": "SOF-1",
			"location":      orb.Point{1, 2},
			"distance":      1.0,
		}
	}

	cases := map[string]func(map[string]any){
		"missing id":       func(r map[string]any) { delete(r, "id") },
		"missing distance": func(r map[string]any) { delete(r, "distance") },
		"bad hex":          func(r map[string]any) { r["location"] = "zz" },
		"not a point":      func(r map[string]any) { r["location"] = `{"type":"LineString","coordinates":[[1,2],[3,4]]}` },
		"bad volume":       func(r map[string]any) { r["capacity_volume"] = "three" },
	}
	for name, mutate := range cases {
		row := base()
		mutate(row)
		if _, err := NormalizeContainerRow(row); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
