package nearby

import (
	"math"
	"strconv"
	"strings"

	"github.com/septivank/city-signals/internal/errs"
	"github.com/septivank/city-signals/internal/store"
)

// Limits bounds the optional query parameters
type Limits struct {
	DefaultRadius float64
	MaxRadius     float64
	DefaultLimit  int
	MaxLimit      int
}

// DefaultLimits are used when no configuration is supplied
var DefaultLimits = Limits{
	DefaultRadius: 1000,
	MaxRadius:     50000,
	DefaultLimit:  10,
	MaxLimit:      100,
}

// Query is a validated nearby search request
type Query struct {
	Latitude  float64
	Longitude float64
	// Radius in meters
	Radius float64
	Page   int
	Limit  int
}

// Pagination returns the page selection of the query
func (q Query) Pagination() store.Pagination {
	return store.Pagination{Page: q.Page, Limit: q.Limit}.Normalize()
}

// ParseQuery builds a Query from request parameters read through get.
// Coordinates are mandatory; radius, limit and page fall back to defaults.
func ParseQuery(get func(key string) string, limits Limits) (Query, error) {
	latRaw := strings.TrimSpace(get("latitude"))
	lonRaw := strings.TrimSpace(get("longitude"))
	if latRaw == "" || lonRaw == "" {
		return Query{}, errs.Validation("latitude and longitude are required")
	}

	lat, latErr := strconv.ParseFloat(latRaw, 64)
	lon, lonErr := strconv.ParseFloat(lonRaw, 64)
	if latErr != nil || lonErr != nil || !isFinite(lat) || !isFinite(lon) {
		return Query{}, errs.Validation("latitude and longitude must be valid numbers")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Query{}, errs.Validation("latitude must be between -90 and 90 and longitude between -180 and 180")
	}

	radius := limits.DefaultRadius
	if v, err := strconv.ParseFloat(strings.TrimSpace(get("radius")), 64); err == nil && isFinite(v) && v > 0 {
		radius = v
	}
	if limits.MaxRadius > 0 && radius > limits.MaxRadius {
		radius = limits.MaxRadius
	}

	p := ParsePagination(get, limits)
	return Query{Latitude: lat, Longitude: lon, Radius: radius, Page: p.Page, Limit: p.Limit}, nil
}

// ParsePagination reads page and limit, falling back to page 1 and the
// default limit. Limit is capped at limits.MaxLimit.
func ParsePagination(get func(key string) string, limits Limits) store.Pagination {
	limit := limits.DefaultLimit
	if n, err := strconv.Atoi(strings.TrimSpace(get("limit"))); err == nil && n > 0 {
		limit = n
	}
	if limits.MaxLimit > 0 && limit > limits.MaxLimit {
		limit = limits.MaxLimit
	}

	page := 1
	if n, err := strconv.Atoi(strings.TrimSpace(get("page"))); err == nil && n > 0 {
		page = n
	}
	return store.Pagination{Page: page, Limit: limit}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
