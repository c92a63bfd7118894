package geo

import "math"

// EarthRadiusMeters is the spherical Earth radius used for all distance math
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two
// points given in degrees, using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// rounding can push a slightly past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Bounds is a latitude/longitude rectangle in degrees
type Bounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Contains reports whether the point lies inside b (edges included)
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BoundingBox returns a rectangle that contains every point within
// radius meters of (lat, lon). Longitude falls back to the full range near
// the poles or when the box would cross the antimeridian.
func BoundingBox(lat, lon, radius float64) Bounds {
	angular := radius / EarthRadiusMeters * 180 / math.Pi

	b := Bounds{
		MinLat: math.Max(-90, lat-angular),
		MaxLat: math.Min(90, lat+angular),
		MinLon: -180,
		MaxLon: 180,
	}

	maxAbsLat := math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))
	if maxAbsLat >= 90 {
		return b
	}

	dLon := angular / math.Cos(maxAbsLat*math.Pi/180)
	if lon-dLon < -180 || lon+dLon > 180 {
		return b
	}
	b.MinLon = lon - dLon
	b.MaxLon = lon + dLon
	return b
}
