package planner

import (
	"context"
	"errors"
	"fmt"

	"backend-rxdispatch/internal/directions"
	"backend-rxdispatch/internal/logging"
	"backend-rxdispatch/internal/pricing"
	"backend-rxdispatch/internal/shared/geo"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	ErrEmptyWaypointSet = errors.New("planner: empty waypoint set")
	ErrInvalidWaypoint  = errors.New("planner: invalid waypoint")
	ErrNoRouteFound     = errors.New("planner: no route found")
)

type Optimizer interface {
	Optimize(ctx context.Context, points []geo.Point) (directions.Trip, error)
}

type Option func(*Planner)

func WithSimpleRates(r pricing.SimpleRates) Option {
	return func(p *Planner) { p.rates = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) { p.log = logging.OrNop(l) }
}

// Planner is stateless apart from its collaborators and safe for concurrent use.
type Planner struct {
	opt   Optimizer
	rates pricing.SimpleRates
	log   *zap.Logger
}

func New(opt Optimizer, opts ...Option) *Planner {
	p := &Planner{
		opt:   opt,
		rates: pricing.DefaultSimpleRates,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Plan sequences waypoints starting from origin. Totals and geometry are
// taken from the provider as-is.
func (p *Planner) Plan(ctx context.Context, origin geo.Point, waypoints []Waypoint) (OptimizedRoute, error) {
	if len(waypoints) == 0 {
		return OptimizedRoute{}, ErrEmptyWaypointSet
	}
	if !origin.Valid() {
		return OptimizedRoute{}, fmt.Errorf("%w: origin out of range", ErrInvalidWaypoint)
	}
	for _, w := range waypoints {
		if !w.Point().Valid() {
			return OptimizedRoute{}, fmt.Errorf("%w: %q out of range", ErrInvalidWaypoint, w.ID)
		}
	}

	points := make([]geo.Point, 0, len(waypoints)+1)
	points = append(points, origin)
	points = append(points, lo.Map(waypoints, func(w Waypoint, _ int) geo.Point { return w.Point() })...)

	trip, err := p.opt.Optimize(ctx, points)
	if err != nil {
		p.log.Warn("route optimization failed", zap.Int("stops", len(waypoints)), zap.Error(err))
		return OptimizedRoute{}, fmt.Errorf("%w: %w", ErrNoRouteFound, err)
	}

	ordered, err := reorder(trip.Order, waypoints)
	if err != nil {
		return OptimizedRoute{}, fmt.Errorf("%w: %w", ErrNoRouteFound, err)
	}

	return OptimizedRoute{
		Waypoints:       ordered,
		TotalDistanceKm: trip.DistanceMeters / 1000,
		TotalDurationS:  trip.DurationSeconds,
		Geometry:        trip.Geometry,
	}, nil
}

// reorder drops the origin (input index 0) from the provider's visiting
// order and maps the remaining indices back onto the caller's waypoints.
func reorder(order []int, waypoints []Waypoint) ([]Waypoint, error) {
	stops := lo.Filter(order, func(idx int, _ int) bool { return idx != 0 })
	if len(stops) != len(waypoints) {
		return nil, fmt.Errorf("provider returned %d stops for %d waypoints", len(stops), len(waypoints))
	}

	seen := make(map[int]struct{}, len(stops))
	out := make([]Waypoint, 0, len(stops))
	for _, idx := range stops {
		j := idx - 1
		if j < 0 || j >= len(waypoints) {
			return nil, fmt.Errorf("provider returned unknown index %d", idx)
		}
		if _, dup := seen[j]; dup {
			return nil, fmt.Errorf("provider returned index %d twice", idx)
		}
		seen[j] = struct{}{}
		out = append(out, waypoints[j])
	}
	return out, nil
}

// Quote plans the route and prices it. A nil cfg selects the simple
// linear rates.
func (p *Planner) Quote(ctx context.Context, origin geo.Point, waypoints []Waypoint, cfg *pricing.Config) (Quote, error) {
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return Quote{}, err
		}
	}

	route, err := p.Plan(ctx, origin, waypoints)
	if err != nil {
		return Quote{}, err
	}
	return PriceRoute(route, cfg, p.rates), nil
}

func PriceRoute(route OptimizedRoute, cfg *pricing.Config, rates pricing.SimpleRates) Quote {
	if cfg == nil {
		return Quote{
			Route: route,
			Price: pricing.Simple(route.TotalDistanceKm, rates),
			Mode:  ModeSimple,
		}
	}

	b := pricing.DetailedBreakdown(route.TotalDistanceKm, route.TotalDurationS/60, *cfg)
	return Quote{
		Route:     route,
		Price:     b.Price,
		Mode:      ModeDetailed,
		Breakdown: &b,
	}
}
