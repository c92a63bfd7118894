package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/geo"
	"github.com/septivank/city-signals/internal/store"
)

// Repository is the PostgreSQL/PostGIS implementation of store.Store
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const containerColumns = `
	id, COALESCE(legacy_id, ''), public_number, ST_X(location), ST_Y(location),
	COALESCE(address, ''), capacity_volume::float8, capacity_size, bin_count,
	COALESCE(service_interval, ''), COALESCE(serviced_by, ''), waste_type, source,
	status, state, COALESCE(notes, ''), last_cleaned, created_at, updated_at`

const signalColumns = `
	id, title, COALESCE(description, ''), category, COALESCE(city_object_type, ''),
	COALESCE(reference_id, ''), COALESCE(city_object_name, ''), container_state,
	ST_X(location), ST_Y(location), COALESCE(address, ''), status,
	COALESCE(admin_notes, ''), COALESCE(reporter_unique_id, ''), created_at, updated_at`

// whereBuilder accumulates conditions and their positional arguments
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// next returns the placeholder for an argument appended after the conditions
func (w *whereBuilder) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

// mapError translates driver errors into store errors
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// scanContainer reads containerColumns followed by the extra destinations
func scanContainer(row pgx.Row, extra ...any) (*db.WasteContainer, error) {
	var c db.WasteContainer
	var lon, lat float64
	var state []string
	dest := []any{
		&c.ID,
		&c.LegacyID,
		&c.PublicNumber,
		&lon,
		&lat,
		&c.Address,
		&c.CapacityVolume,
		&c.CapacitySize,
		&c.BinCount,
		&c.ServiceInterval,
		&c.ServicedBy,
		&c.WasteType,
		&c.Source,
		&c.Status,
		&state,
		&c.Notes,
		&c.LastCleaned,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.Location = orb.Point{lon, lat}
	c.State = toConditions(state)
	return &c, nil
}

func scanSignal(row pgx.Row) (*db.Signal, error) {
	var s db.Signal
	var objType, refID, objName string
	var lon, lat *float64
	var state []string
	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.Description,
		&s.Category,
		&objType,
		&refID,
		&objName,
		&state,
		&lon,
		&lat,
		&s.Address,
		&s.Status,
		&s.AdminNotes,
		&s.ReporterUniqueID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if objType != "" || refID != "" || objName != "" {
		s.CityObject = &db.CityObject{Type: db.ObjectType(objType), ReferenceID: refID, Name: objName}
	}
	if lon != nil && lat != nil {
		s.Location = &orb.Point{*lon, *lat}
	}
	if len(state) > 0 {
		s.ContainerState = toConditions(state)
	}
	return &s, nil
}

func toConditions(in []string) []db.ContainerCondition {
	out := make([]db.ContainerCondition, 0, len(in))
	for _, s := range in {
		out = append(out, db.ContainerCondition(s))
	}
	return out
}

func fromConditions(in []db.ContainerCondition) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		out = append(out, string(c))
	}
	return out
}

func containerWhere(f store.ContainerFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.PublicNumber != "" {
		w.add("public_number = ?", f.PublicNumber)
	}
	if f.LegacyID != "" {
		w.add("legacy_id = ?", f.LegacyID)
	}
	if b := f.Within; b != nil {
		w.add("location && ST_MakeEnvelope(?, ?, ?, ?, 4326)", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
	}
	return w
}

// FindContainers returns a page of containers, newest first
func (r *Repository) FindContainers(ctx context.Context, filter store.ContainerFilter, p store.Pagination) (store.Page[db.WasteContainer], error) {
	p = p.Normalize()
	w := containerWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM waste_containers`+w.clause(), w.args...).Scan(&total); err != nil {
		return store.Page[db.WasteContainer]{}, fmt.Errorf("failed to count containers: %w", err)
	}

	where := w.clause()
	query := `SELECT ` + containerColumns + ` FROM waste_containers` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ` + w.next(p.Limit) + ` OFFSET ` + w.next(p.Offset())

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return store.Page[db.WasteContainer]{}, fmt.Errorf("failed to query containers: %w", err)
	}
	defer rows.Close()

	var docs []db.WasteContainer
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return store.Page[db.WasteContainer]{}, fmt.Errorf("failed to scan container: %w", err)
		}
		docs = append(docs, *c)
	}
	if err := rows.Err(); err != nil {
		return store.Page[db.WasteContainer]{}, fmt.Errorf("rows iteration error: %w", err)
	}

	return store.NewPage(docs, total, p), nil
}

func (r *Repository) FindContainerByID(ctx context.Context, id uuid.UUID) (*db.WasteContainer, error) {
	c, err := scanContainer(r.pool.QueryRow(ctx, `SELECT `+containerColumns+` FROM waste_containers WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get container: %w", mapError(err))
	}
	return c, nil
}

// CreateContainer inserts the container and fills in its id and timestamps.
// A preset CreatedAt is kept, which the legacy import relies on.
func (r *Repository) CreateContainer(ctx context.Context, c *db.WasteContainer) error {
	query := `
		INSERT INTO waste_containers (
			legacy_id, public_number, location, address, capacity_volume, capacity_size,
			bin_count, service_interval, serviced_by, waste_type, source, status, state,
			notes, last_cleaned, created_at
		)
		VALUES (
			NULLIF($1, ''), $2, ST_SetSRID(ST_MakePoint($3, $4), 4326), NULLIF($5, ''), $6, $7,
			$8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13, $14,
			NULLIF($15, ''), $16, COALESCE($17::timestamptz, now())
		)
		RETURNING id, created_at, updated_at
	`

	binCount := c.BinCount
	if binCount < 1 {
		binCount = 1
	}
	var createdAt any
	if !c.CreatedAt.IsZero() {
		createdAt = c.CreatedAt
	}
	if c.State == nil {
		c.State = []db.ContainerCondition{}
	}

	err := r.pool.QueryRow(ctx, query,
		c.LegacyID,
		c.PublicNumber,
		c.Location.Lon(),
		c.Location.Lat(),
		c.Address,
		c.CapacityVolume,
		string(c.CapacitySize),
		binCount,
		c.ServiceInterval,
		c.ServicedBy,
		string(c.WasteType),
		string(c.Source),
		string(c.Status),
		fromConditions(c.State),
		c.Notes,
		c.LastCleaned,
		createdAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert container: %w", mapError(err))
	}
	c.BinCount = binCount
	return nil
}

func (r *Repository) UpdateContainer(ctx context.Context, id uuid.UUID, patch db.ContainerPatch) (*db.WasteContainer, error) {
	w := &whereBuilder{}
	var sets []string
	if patch.Status != nil {
		sets = append(sets, "status = "+w.next(string(*patch.Status)))
	}
	if patch.State != nil {
		sets = append(sets, "state = "+w.next(fromConditions(*patch.State)))
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = NULLIF("+w.next(*patch.Notes)+", '')")
	}
	if patch.LastCleaned != nil {
		sets = append(sets, "last_cleaned = "+w.next(*patch.LastCleaned))
	}
	sets = append(sets, "updated_at = now()")

	query := `UPDATE waste_containers SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + w.next(id) + ` RETURNING ` + containerColumns

	c, err := scanContainer(r.pool.QueryRow(ctx, query, w.args...))
	if err != nil {
		return nil, fmt.Errorf("failed to update container: %w", mapError(err))
	}
	return c, nil
}

// openSignalCounts counts open waste-container signals per referenced
// public number. $1 is the category, $2 the terminal statuses.
const openSignalCounts = `
	WITH open_counts AS (
		SELECT reference_id, count(*)::int AS open_signals
		FROM signals
		WHERE category = $1
		  AND status <> ALL($2::text[])
		  AND reference_id IS NOT NULL AND reference_id <> ''
		GROUP BY reference_id
	)`

// FindContainersWithOpenSignals joins containers with their open signal
// counts, most reported first
func (r *Repository) FindContainersWithOpenSignals(ctx context.Context, p store.Pagination) (store.Page[store.ContainerSignalCount], error) {
	p = p.Normalize()
	terminal := make([]string, 0, len(db.TerminalSignalStatuses))
	for _, s := range db.TerminalSignalStatuses {
		terminal = append(terminal, string(s))
	}
	category := string(db.CategoryWasteContainer)

	var total int
	err := r.pool.QueryRow(ctx, openSignalCounts+`
		SELECT count(*) FROM waste_containers
		JOIN open_counts ON open_counts.reference_id = waste_containers.public_number`,
		category, terminal,
	).Scan(&total)
	if err != nil {
		return store.Page[store.ContainerSignalCount]{}, fmt.Errorf("failed to count containers with signals: %w", err)
	}

	rows, err := r.pool.Query(ctx, openSignalCounts+`
		SELECT `+containerColumns+`, open_counts.open_signals
		FROM waste_containers
		JOIN open_counts ON open_counts.reference_id = waste_containers.public_number
		ORDER BY open_counts.open_signals DESC, public_number ASC
		LIMIT $3 OFFSET $4`,
		category, terminal, p.Limit, p.Offset(),
	)
	if err != nil {
		return store.Page[store.ContainerSignalCount]{}, fmt.Errorf("failed to query containers with signals: %w", err)
	}
	defer rows.Close()

	var docs []store.ContainerSignalCount
	for rows.Next() {
		var open int
		c, err := scanContainer(rows, &open)
		if err != nil {
			return store.Page[store.ContainerSignalCount]{}, fmt.Errorf("failed to scan container: %w", err)
		}
		docs = append(docs, store.ContainerSignalCount{WasteContainer: *c, OpenSignals: open})
	}
	if err := rows.Err(); err != nil {
		return store.Page[store.ContainerSignalCount]{}, fmt.Errorf("rows iteration error: %w", err)
	}

	return store.NewPage(docs, total, p), nil
}

func signalWhere(f store.SignalFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.ReporterUniqueID != "" {
		w.add("reporter_unique_id = ?", f.ReporterUniqueID)
	}
	if f.ReferenceID != "" {
		w.add("reference_id = ?", f.ReferenceID)
	}
	if f.Category != "" {
		w.add("category = ?", string(f.Category))
	}
	if len(f.StatusNotIn) > 0 {
		statuses := make([]string, 0, len(f.StatusNotIn))
		for _, s := range f.StatusNotIn {
			statuses = append(statuses, string(s))
		}
		w.add("status <> ALL(?::text[])", statuses)
	}
	return w
}

// FindSignals returns a page of signals, newest first
func (r *Repository) FindSignals(ctx context.Context, filter store.SignalFilter, p store.Pagination) (store.Page[db.Signal], error) {
	p = p.Normalize()
	w := signalWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM signals`+w.clause(), w.args...).Scan(&total); err != nil {
		return store.Page[db.Signal]{}, fmt.Errorf("failed to count signals: %w", err)
	}

	where := w.clause()
	query := `SELECT ` + signalColumns + ` FROM signals` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ` + w.next(p.Limit) + ` OFFSET ` + w.next(p.Offset())

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return store.Page[db.Signal]{}, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var docs []db.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return store.Page[db.Signal]{}, fmt.Errorf("failed to scan signal: %w", err)
		}
		docs = append(docs, *s)
	}
	if err := rows.Err(); err != nil {
		return store.Page[db.Signal]{}, fmt.Errorf("rows iteration error: %w", err)
	}

	return store.NewPage(docs, total, p), nil
}

func (r *Repository) FindSignalByID(ctx context.Context, id uuid.UUID) (*db.Signal, error) {
	s, err := scanSignal(r.pool.QueryRow(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get signal: %w", mapError(err))
	}
	return s, nil
}

// CreateSignal inserts the signal and fills in its id and timestamps.
// A concurrent duplicate open report fails with store.ErrConflict.
func (r *Repository) CreateSignal(ctx context.Context, s *db.Signal) error {
	query := `
		INSERT INTO signals (
			title, description, category, city_object_type, reference_id, city_object_name,
			container_state, location, address, status, admin_notes, reporter_unique_id
		)
		VALUES (
			$1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
			$7, ST_SetSRID(ST_MakePoint($8::float8, $9::float8), 4326), NULLIF($10, ''), $11,
			NULLIF($12, ''), NULLIF($13, '')
		)
		RETURNING id, created_at, updated_at
	`

	var objType, refID, objName string
	if s.CityObject != nil {
		objType, refID, objName = string(s.CityObject.Type), s.CityObject.ReferenceID, s.CityObject.Name
	}
	var lon, lat *float64
	if s.Location != nil {
		x, y := s.Location.Lon(), s.Location.Lat()
		lon, lat = &x, &y
	}

	err := r.pool.QueryRow(ctx, query,
		s.Title,
		s.Description,
		string(s.Category),
		objType,
		refID,
		objName,
		fromConditions(s.ContainerState),
		lon,
		lat,
		s.Address,
		string(s.Status),
		s.AdminNotes,
		s.ReporterUniqueID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", mapError(err))
	}
	return nil
}

func (r *Repository) UpdateSignal(ctx context.Context, id uuid.UUID, patch db.SignalPatch) (*db.Signal, error) {
	w := &whereBuilder{}
	var sets []string
	if patch.Title != nil {
		sets = append(sets, "title = "+w.next(*patch.Title))
	}
	if patch.Description != nil {
		sets = append(sets, "description = NULLIF("+w.next(*patch.Description)+", '')")
	}
	if patch.Address != nil {
		sets = append(sets, "address = NULLIF("+w.next(*patch.Address)+", '')")
	}
	if patch.Status != nil {
		sets = append(sets, "status = "+w.next(string(*patch.Status)))
	}
	if patch.AdminNotes != nil {
		sets = append(sets, "admin_notes = NULLIF("+w.next(*patch.AdminNotes)+", '')")
	}
	if patch.ContainerState != nil {
		sets = append(sets, "container_state = "+w.next(fromConditions(*patch.ContainerState)))
	}
	sets = append(sets, "updated_at = now()")

	query := `UPDATE signals SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + w.next(id) + ` RETURNING ` + signalColumns

	s, err := scanSignal(r.pool.QueryRow(ctx, query, w.args...))
	if err != nil {
		return nil, fmt.Errorf("failed to update signal: %w", mapError(err))
	}
	return s, nil
}

// nearbyCandidates computes the great-circle distance with the same
// formula and earth radius as the in-process search. ST_DWithin on a
// slightly widened radius only serves as an index-backed prefilter.
const nearbyCandidates = `
	WITH candidates AS (
		SELECT c.*,
			2 * $4::float8 * asin(sqrt(LEAST(1.0,
				power(sin(radians(ST_Y(c.location) - $2::float8) / 2), 2) +
				cos(radians($2::float8)) * cos(radians(ST_Y(c.location))) *
				power(sin(radians(ST_X(c.location) - $1::float8) / 2), 2)
			))) AS distance
		FROM waste_containers c
		WHERE ST_DWithin(
			c.location::geography,
			ST_SetSRID(ST_MakePoint($1::float8, $2::float8), 4326)::geography,
			$3::float8 * 1.01 + 1
		)
	)`

// NearbyContainerRows runs the spatial query and returns raw driver rows
// keyed by column name, ordered by distance then public number.
func (r *Repository) NearbyContainerRows(ctx context.Context, lon, lat, radius float64, limit, offset int) ([]map[string]any, int, error) {
	var total int
	countQuery := nearbyCandidates + ` SELECT count(*) FROM candidates WHERE distance <= $3::float8`
	if err := r.pool.QueryRow(ctx, countQuery, lon, lat, radius, geo.EarthRadiusMeters).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count nearby containers: %w", err)
	}

	query := nearbyCandidates + `
		SELECT id, legacy_id, public_number, ST_AsEWKB(location) AS location, address,
			capacity_volume::text AS capacity_volume, capacity_size, bin_count,
			service_interval, serviced_by, waste_type, source, status, state, notes,
			last_cleaned, created_at, updated_at, distance
		FROM candidates
		WHERE distance <= $3::float8
		ORDER BY distance ASC, public_number ASC
		LIMIT $5 OFFSET $6
	`
	rows, err := r.pool.Query(ctx, query, lon, lat, radius, geo.EarthRadiusMeters, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query nearby containers: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read nearby row: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return out, total, nil
}

var _ store.Store = (*Repository)(nil)
