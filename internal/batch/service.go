package batch

import (
	"context"
	"errors"
	"fmt"

	"backend-rxdispatch/internal/logging"
	"backend-rxdispatch/internal/planner"
	"backend-rxdispatch/internal/pricing"
	"backend-rxdispatch/internal/shared/geo"

	"go.uber.org/zap"
)

type Quoter interface {
	Quote(ctx context.Context, origin geo.Point, waypoints []planner.Waypoint, cfg *pricing.Config) (planner.Quote, error)
}

// StopResolver looks up saved stops by id.
type StopResolver interface {
	Resolve(ctx context.Context, ids []string) ([]planner.Waypoint, error)
}

// Service glues the planner to the store: it loads the pricing config,
// plans and prices a stop list and persists the result.
type Service struct {
	store   *Store
	planner Quoter
	stops   StopResolver
	log     *zap.Logger
}

// NewService accepts a nil stops resolver; requests carrying stop ids then
// fail as if no database were configured.
func NewService(store *Store, q Quoter, stops StopResolver, log *zap.Logger) *Service {
	return &Service{store: store, planner: q, stops: stops, log: logging.OrNop(log)}
}

func (s *Service) Quote(ctx context.Context, req PlanRequest) (planner.Quote, error) {
	waypoints, err := s.waypoints(ctx, req)
	if err != nil {
		return planner.Quote{}, err
	}
	cfg, err := s.pricingConfig(ctx)
	if err != nil {
		return planner.Quote{}, err
	}
	return s.planner.Quote(ctx, req.Origin, waypoints, cfg)
}

// Plan refuses before calling the provider when the batch cannot be stored.
func (s *Service) Plan(ctx context.Context, req PlanRequest, createdBy string) (Batch, error) {
	if err := s.store.Ready(); err != nil {
		return Batch{}, err
	}
	q, err := s.Quote(ctx, req)
	if err != nil {
		return Batch{}, err
	}
	b, err := s.store.SaveBatch(ctx, fromQuote(req.Origin, q, createdBy))
	if err != nil {
		return Batch{}, err
	}
	s.log.Info("batch planned",
		zap.String("batch_id", b.ID),
		zap.Int("stops", len(b.Waypoints)),
		zap.Float64("distance_km", b.TotalDistanceKm),
		zap.Float64("price", b.Price),
		zap.String("pricing_mode", b.PricingMode))
	return b, nil
}

func (s *Service) Get(ctx context.Context, id string) (Batch, error) {
	return s.store.GetBatch(ctx, id)
}

func (s *Service) PricingConfig(ctx context.Context) (*pricing.Config, error) {
	return s.store.GetPricingConfig(ctx)
}

func (s *Service) SavePricingConfig(ctx context.Context, cfg pricing.Config) error {
	return s.store.SavePricingConfig(ctx, cfg)
}

func (s *Service) waypoints(ctx context.Context, req PlanRequest) ([]planner.Waypoint, error) {
	if len(req.StopIDs) == 0 {
		return req.Waypoints, nil
	}
	if s.stops == nil {
		return nil, fmt.Errorf("%w: saved stops unavailable", ErrNoDatabase)
	}
	saved, err := s.stops.Resolve(ctx, req.StopIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve stops: %w", err)
	}
	out := make([]planner.Waypoint, 0, len(req.Waypoints)+len(saved))
	out = append(out, req.Waypoints...)
	return append(out, saved...), nil
}

// pricingConfig falls back to simple pricing when no database is wired.
func (s *Service) pricingConfig(ctx context.Context) (*pricing.Config, error) {
	cfg, err := s.store.GetPricingConfig(ctx)
	if errors.Is(err, ErrNoDatabase) {
		return nil, nil
	}
	return cfg, err
}
