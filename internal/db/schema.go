package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// schemaStatements create the tables and indexes the repository relies on.
// Every statement is idempotent so the list can run on each boot.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS waste_containers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		legacy_id TEXT,
		public_number TEXT NOT NULL,
		location geometry(Point, 4326) NOT NULL,
		address TEXT,
		capacity_volume NUMERIC NOT NULL CHECK (capacity_volume >= 0),
		capacity_size TEXT NOT NULL DEFAULT 'standard',
		bin_count INT NOT NULL DEFAULT 1 CHECK (bin_count >= 1),
		service_interval TEXT,
		serviced_by TEXT,
		waste_type TEXT NOT NULL DEFAULT 'general',
		source TEXT NOT NULL DEFAULT 'community',
		status TEXT NOT NULL DEFAULT 'active',
		state TEXT[] NOT NULL DEFAULT '{}',
		notes TEXT,
		last_cleaned TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS waste_containers_public_number_idx ON waste_containers (public_number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS waste_containers_legacy_id_idx ON waste_containers (legacy_id) WHERE legacy_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS waste_containers_status_idx ON waste_containers (status)`,
	`CREATE INDEX IF NOT EXISTS waste_containers_waste_type_idx ON waste_containers (waste_type)`,
	`CREATE INDEX IF NOT EXISTS waste_containers_location_idx ON waste_containers USING GIST (location)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title TEXT NOT NULL,
		description TEXT,
		category TEXT NOT NULL DEFAULT 'other',
		city_object_type TEXT,
		reference_id TEXT,
		city_object_name TEXT,
		container_state TEXT[] NOT NULL DEFAULT '{}',
		location geometry(Point, 4326),
		address TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		admin_notes TEXT,
		reporter_unique_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS signals_category_idx ON signals (category)`,
	`CREATE INDEX IF NOT EXISTS signals_status_idx ON signals (status)`,
	`CREATE INDEX IF NOT EXISTS signals_reporter_unique_id_idx ON signals (reporter_unique_id)`,
	`CREATE INDEX IF NOT EXISTS signals_location_idx ON signals USING GIST (location)`,
	// one open waste-container report per reporter and container; the store
	// rejects the losing writer of a concurrent duplicate submission
	`CREATE UNIQUE INDEX IF NOT EXISTS signals_open_waste_report_idx
		ON signals (reporter_unique_id, reference_id, category)
		WHERE category = 'waste-container'
		  AND status NOT IN ('resolved', 'rejected')
		  AND reporter_unique_id IS NOT NULL AND reporter_unique_id <> ''
		  AND reference_id IS NOT NULL AND reference_id <> ''`,
}

// EnsureSchema creates missing tables and indexes
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	for i, stmt := range schemaStatements {
		logger.Debug("executing schema statement", zap.Int("index", i))
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement %d: %w", i, err)
		}
	}
	logger.Info("database schema ensured", zap.Int("statements", len(schemaStatements)))
	return nil
}
