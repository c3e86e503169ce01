package db

import (
	"context"
	"fmt"
)

// schema is idempotent. delivery_locations needs PostGIS for the geography
// column.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS delivery_locations (
		id BIGSERIAL PRIMARY KEY,
		tracking_id TEXT NOT NULL,
		location GEOGRAPHY(POINT, 4326) NOT NULL,
		heading DOUBLE PRECISION,
		speed_mps DOUBLE PRECISION,
		accuracy_m DOUBLE PRECISION,
		recorded_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS delivery_locations_tracking_idx ON delivery_locations (tracking_id, recorded_at)`,
	`CREATE TABLE IF NOT EXISTS delivery_stops (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		location GEOGRAPHY(POINT, 4326) NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS delivery_stops_location_idx ON delivery_stops USING GIST (location)`,
	`CREATE TABLE IF NOT EXISTS delivery_batches (
		id UUID PRIMARY KEY,
		origin_lat DOUBLE PRECISION NOT NULL,
		origin_lng DOUBLE PRECISION NOT NULL,
		waypoints JSONB NOT NULL,
		total_distance_km DOUBLE PRECISION NOT NULL,
		total_duration_s DOUBLE PRECISION NOT NULL,
		geometry JSONB,
		price DOUBLE PRECISION NOT NULL,
		pricing_mode TEXT NOT NULL,
		breakdown JSONB,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pricing_config (
		id INT PRIMARY KEY CHECK (id = 1),
		gasoline_price DOUBLE PRECISION NOT NULL,
		vehicle_consumption DOUBLE PRECISION NOT NULL,
		maintenance_per_km DOUBLE PRECISION NOT NULL,
		cost_per_minute DOUBLE PRECISION NOT NULL,
		base_fee DOUBLE PRECISION NOT NULL,
		profit_margin_pct DOUBLE PRECISION NOT NULL,
		minimum_price DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
