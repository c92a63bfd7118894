package nearby

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/geojson"
	"github.com/septivank/city-signals/internal/db"
)

// NormalizeContainerRow converts a driver-level row into the canonical
// container document. Keys may be snake_case columns or camelCase fields;
// location may be a point, a [lon, lat] pair, hex or binary EWKB, or GeoJSON;
// numeric columns may arrive as text.
func NormalizeContainerRow(row map[string]any) (Result, error) {
	var r Result
	var err error

	if r.ID, err = toUUID(lookup(row, "id")); err != nil {
		return Result{}, fmt.Errorf("id: %w", err)
	}
	if r.PublicNumber = toString(lookup(row, "public_number", "publicNumber")); r.PublicNumber == "" {
		return Result{}, fmt.Errorf("public_number: missing")
	}
	if r.Location, err = toPoint(row); err != nil {
		return Result{}, fmt.Errorf("location: %w", err)
	}
	if r.Distance, err = toFloat(lookup(row, "distance")); err != nil {
		return Result{}, fmt.Errorf("distance: %w", err)
	}

	r.LegacyID = toString(lookup(row, "legacy_id", "legacyId"))
	r.Address = toString(lookup(row, "address"))
	r.ServiceInterval = toString(lookup(row, "service_interval", "serviceInterval"))
	r.ServicedBy = toString(lookup(row, "serviced_by", "servicedBy"))
	r.Notes = toString(lookup(row, "notes"))
	r.CapacitySize = db.CapacitySize(toString(lookup(row, "capacity_size", "capacitySize")))
	r.WasteType = db.WasteType(toString(lookup(row, "waste_type", "wasteType")))
	r.Source = db.ContainerSource(toString(lookup(row, "source")))
	r.Status = db.ContainerStatus(toString(lookup(row, "status")))

	if v := lookup(row, "capacity_volume", "capacityVolume"); v != nil {
		if r.CapacityVolume, err = toFloat(v); err != nil {
			return Result{}, fmt.Errorf("capacity_volume: %w", err)
		}
	}
	r.BinCount = 1
	if v := lookup(row, "bin_count", "binCount"); v != nil {
		n, err := toFloat(v)
		if err != nil {
			return Result{}, fmt.Errorf("bin_count: %w", err)
		}
		r.BinCount = int(n)
	}
	if r.State, err = toConditions(lookup(row, "state")); err != nil {
		return Result{}, fmt.Errorf("state: %w", err)
	}
	if r.LastCleaned, err = toTimePtr(lookup(row, "last_cleaned", "lastCleaned")); err != nil {
		return Result{}, fmt.Errorf("last_cleaned: %w", err)
	}
	if t, err := toTimePtr(lookup(row, "created_at", "createdAt")); err != nil {
		return Result{}, fmt.Errorf("created_at: %w", err)
	} else if t != nil {
		r.CreatedAt = *t
	}
	if t, err := toTimePtr(lookup(row, "updated_at", "updatedAt")); err != nil {
		return Result{}, fmt.Errorf("updated_at: %w", err)
	} else if t != nil {
		r.UpdatedAt = *t
	}

	return r, nil
}

func lookup(row map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case *string:
		if t == nil {
			return ""
		}
		return *t
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func toUUID(v any) (uuid.UUID, error) {
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case [16]byte:
		return uuid.UUID(t), nil
	case string:
		return uuid.Parse(t)
	case []byte:
		if len(t) == 16 {
			return uuid.FromBytes(t)
		}
		return uuid.ParseBytes(t)
	case nil:
		return uuid.Nil, fmt.Errorf("missing value")
	default:
		return uuid.Nil, fmt.Errorf("unsupported id type %T", v)
	}
}

// toPoint reads the location column, falling back to separate
// longitude/latitude columns.
func toPoint(row map[string]any) (orb.Point, error) {
	v := lookup(row, "location")
	if v == nil {
		lon, lonErr := toFloat(lookup(row, "longitude", "location_longitude"))
		lat, latErr := toFloat(lookup(row, "latitude", "location_latitude"))
		if lonErr != nil || latErr != nil {
			return orb.Point{}, fmt.Errorf("missing value")
		}
		return orb.Point{lon, lat}, nil
	}

	switch t := v.(type) {
	case orb.Point:
		return t, nil
	case [2]float64:
		return orb.Point(t), nil
	case []float64:
		if len(t) != 2 {
			return orb.Point{}, fmt.Errorf("expected 2 coordinates, got %d", len(t))
		}
		return orb.Point{t[0], t[1]}, nil
	case []any:
		if len(t) != 2 {
			return orb.Point{}, fmt.Errorf("expected 2 coordinates, got %d", len(t))
		}
		lon, err := toFloat(t[0])
		if err != nil {
			return orb.Point{}, err
		}
		lat, err := toFloat(t[1])
		if err != nil {
			return orb.Point{}, err
		}
		return orb.Point{lon, lat}, nil
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return orb.Point{}, err
		}
		return pointFromGeoJSON(b)
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "{") {
			return pointFromGeoJSON([]byte(s))
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return orb.Point{}, fmt.Errorf("invalid hex geometry: %w", err)
		}
		return pointFromEWKB(raw)
	case []byte:
		if len(t) > 0 && t[0] == '{' {
			return pointFromGeoJSON(t)
		}
		return pointFromEWKB(t)
	default:
		return orb.Point{}, fmt.Errorf("unsupported geometry type %T", v)
	}
}

func pointFromEWKB(raw []byte) (orb.Point, error) {
	g, _, err := ewkb.Unmarshal(raw)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid ewkb: %w", err)
	}
	p, ok := g.(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("expected point geometry, got %s", g.GeoJSONType())
	}
	return p, nil
}

func pointFromGeoJSON(raw []byte) (orb.Point, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid geojson: %w", err)
	}
	p, ok := g.Geometry().(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("expected point geometry, got %s", g.Type)
	}
	return p, nil
}

func toConditions(v any) ([]db.ContainerCondition, error) {
	out := []db.ContainerCondition{}
	switch t := v.(type) {
	case nil:
		return out, nil
	case []db.ContainerCondition:
		return append(out, t...), nil
	case []string:
		for _, s := range t {
			out = append(out, db.ContainerCondition(s))
		}
	case []any:
		for _, s := range t {
			out = append(out, db.ContainerCondition(toString(s)))
		}
	case string:
		// postgres array literal, e.g. {full,dirty}
		inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(t), "{"), "}")
		if inner == "" {
			return out, nil
		}
		for _, s := range strings.Split(inner, ",") {
			out = append(out, db.ContainerCondition(strings.Trim(s, `" `)))
		}
	default:
		return nil, fmt.Errorf("unsupported array type %T", v)
	}
	return out, nil
}

func toTimePtr(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case *time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	default:
		return nil, fmt.Errorf("unsupported time type %T", v)
	}
}
