package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backend-rxdispatch/internal/db"
	"backend-rxdispatch/internal/pricing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNoDatabase = errors.New("batch: database not configured")
	ErrNotFound   = errors.New("batch: not found")
)

// Store persists planned batches and the single pricing configuration row.
type Store struct {
	db db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

// Ready reports ErrNoDatabase when nothing can be persisted.
func (s *Store) Ready() error {
	if s.db == nil {
		return ErrNoDatabase
	}
	return nil
}

func (s *Store) SaveBatch(ctx context.Context, b Batch) (Batch, error) {
	if s.db == nil {
		return Batch{}, ErrNoDatabase
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	waypoints, err := json.Marshal(b.Waypoints)
	if err != nil {
		return Batch{}, fmt.Errorf("encode waypoints: %w", err)
	}
	breakdown, err := encodeBreakdown(b.Breakdown)
	if err != nil {
		return Batch{}, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO delivery_batches (id, origin_lat, origin_lng, waypoints, total_distance_km, total_duration_s, geometry, price, pricing_mode, breakdown, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at
	`, b.ID, b.Origin.Lat, b.Origin.Lng, waypoints, b.TotalDistanceKm, b.TotalDurationS, []byte(b.Geometry), b.Price, b.PricingMode, breakdown, b.CreatedBy)
	if err := row.Scan(&b.CreatedAt); err != nil {
		return Batch{}, fmt.Errorf("insert batch: %w", err)
	}
	return b, nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (Batch, error) {
	if s.db == nil {
		return Batch{}, ErrNoDatabase
	}
	row := s.db.QueryRow(ctx, `
		SELECT id, origin_lat, origin_lng, waypoints, total_distance_km, total_duration_s, geometry, price, pricing_mode, breakdown, created_by, created_at
		FROM delivery_batches WHERE id=$1
	`, id)

	var (
		b                              Batch
		waypoints, geometry, breakdown []byte
	)
	err := row.Scan(&b.ID, &b.Origin.Lat, &b.Origin.Lng, &waypoints, &b.TotalDistanceKm, &b.TotalDurationS,
		&geometry, &b.Price, &b.PricingMode, &breakdown, &b.CreatedBy, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	if err != nil {
		return Batch{}, fmt.Errorf("select batch: %w", err)
	}

	if err := json.Unmarshal(waypoints, &b.Waypoints); err != nil {
		return Batch{}, fmt.Errorf("decode waypoints: %w", err)
	}
	if len(geometry) > 0 {
		b.Geometry = json.RawMessage(geometry)
	}
	if len(breakdown) > 0 {
		b.Breakdown = &pricing.Breakdown{}
		if err := json.Unmarshal(breakdown, b.Breakdown); err != nil {
			return Batch{}, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	return b, nil
}

// GetPricingConfig returns nil when no detailed configuration was saved,
// which selects the simple rates.
func (s *Store) GetPricingConfig(ctx context.Context) (*pricing.Config, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	row := s.db.QueryRow(ctx, `
		SELECT gasoline_price, vehicle_consumption, maintenance_per_km, cost_per_minute, base_fee, profit_margin_pct, minimum_price
		FROM pricing_config WHERE id=1
	`)
	var c pricing.Config
	err := row.Scan(&c.GasolinePrice, &c.VehicleConsumption, &c.MaintenancePerKm, &c.CostPerMinute, &c.BaseFee, &c.ProfitMarginPct, &c.MinimumPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select pricing config: %w", err)
	}
	return &c, nil
}

func (s *Store) SavePricingConfig(ctx context.Context, c pricing.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if s.db == nil {
		return ErrNoDatabase
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO pricing_config (id, gasoline_price, vehicle_consumption, maintenance_per_km, cost_per_minute, base_fee, profit_margin_pct, minimum_price, updated_at)
		VALUES (1,$1,$2,$3,$4,$5,$6,$7, now())
		ON CONFLICT (id) DO UPDATE SET
			gasoline_price=EXCLUDED.gasoline_price,
			vehicle_consumption=EXCLUDED.vehicle_consumption,
			maintenance_per_km=EXCLUDED.maintenance_per_km,
			cost_per_minute=EXCLUDED.cost_per_minute,
			base_fee=EXCLUDED.base_fee,
			profit_margin_pct=EXCLUDED.profit_margin_pct,
			minimum_price=EXCLUDED.minimum_price,
			updated_at=now()
	`, c.GasolinePrice, c.VehicleConsumption, c.MaintenancePerKm, c.CostPerMinute, c.BaseFee, c.ProfitMarginPct, c.MinimumPrice)
	if err != nil {
		return fmt.Errorf("upsert pricing config: %w", err)
	}
	return nil
}

func encodeBreakdown(b *pricing.Breakdown) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode breakdown: %w", err)
	}
	return raw, nil
}
