package eta

import (
	"context"
	"math"
	"time"

	"backend-rxdispatch/internal/directions"
	"backend-rxdispatch/internal/logging"
	"backend-rxdispatch/internal/shared/geo"

	"go.uber.org/zap"
)

type Router interface {
	Route(ctx context.Context, from, to geo.Point) (directions.Route, error)
}

// Policy bounds provider calls: recompute when Interval has elapsed since
// the last successful computation or the driver moved DistanceThresholdM
// from the position that computation used.
type Policy struct {
	Interval           time.Duration
	DistanceThresholdM float64
}

var DefaultPolicy = Policy{Interval: 30 * time.Second, DistanceThresholdM: 200}

type Estimate struct {
	ETASeconds   int64     `json:"eta_seconds"`
	DistanceKm   float64   `json:"distance_km"`
	CalculatedAt time.Time `json:"calculated_at"`
}

type Trigger string

const (
	TriggerInitial  Trigger = "initial"
	TriggerTime     Trigger = "time"
	TriggerDistance Trigger = "distance"
)

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.log = logging.OrNop(l) }
}

// Engine holds the ETA state of a single observer session. It is not safe
// for concurrent use; the owning Session is its only caller.
type Engine struct {
	router Router
	dest   geo.Point
	policy Policy
	now    func() time.Time
	log    *zap.Logger

	calculated  bool
	lastCalcAt  time.Time
	lastCalcPos geo.Point

	hasLatest bool
	latest    geo.Point

	hasCurrent bool
	current    Estimate
}

func NewEngine(router Router, dest geo.Point, policy Policy, opts ...EngineOption) *Engine {
	if policy.Interval <= 0 {
		policy.Interval = DefaultPolicy.Interval
	}
	if policy.DistanceThresholdM <= 0 {
		policy.DistanceThresholdM = DefaultPolicy.DistanceThresholdM
	}
	e := &Engine{
		router: router,
		dest:   dest,
		policy: policy,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Policy() Policy { return e.policy }

// Due reports whether pos at now fires a trigger. A stationary driver is
// not short-circuited: the time trigger still fires so traffic changes
// reach the estimate.
func (e *Engine) Due(pos geo.Point, now time.Time) (Trigger, bool) {
	if !e.calculated {
		return TriggerInitial, true
	}
	if now.Sub(e.lastCalcAt) >= e.policy.Interval {
		return TriggerTime, true
	}
	if geo.DistanceM(e.lastCalcPos, pos) >= e.policy.DistanceThresholdM {
		return TriggerDistance, true
	}
	return "", false
}

// Observe feeds a new driver position. It returns the new estimate and true
// only when a recomputation ran and succeeded.
func (e *Engine) Observe(ctx context.Context, pos geo.Point) (Estimate, bool) {
	e.latest = pos
	e.hasLatest = true

	trigger, due := e.Due(pos, e.now())
	if !due {
		return e.current, false
	}
	return e.recompute(ctx, pos, trigger)
}

// Tick is the fallback timer: it applies the time trigger to the last known
// position so the estimate does not go stale when updates stop.
func (e *Engine) Tick(ctx context.Context) (Estimate, bool) {
	if !e.hasLatest {
		return e.current, false
	}
	if e.calculated && e.now().Sub(e.lastCalcAt) < e.policy.Interval {
		return e.current, false
	}
	return e.recompute(ctx, e.latest, TriggerTime)
}

// NextTick is how long until the time trigger fires for the last computed
// estimate. Before the first estimate, or once that moment has passed
// without a successful recompute, it is a full interval.
func (e *Engine) NextTick() time.Duration {
	if !e.calculated {
		return e.policy.Interval
	}
	d := e.lastCalcAt.Add(e.policy.Interval).Sub(e.now())
	if d <= 0 {
		return e.policy.Interval
	}
	return d
}

func (e *Engine) Current() (Estimate, bool) {
	return e.current, e.hasCurrent
}

func (e *Engine) recompute(ctx context.Context, pos geo.Point, trigger Trigger) (Estimate, bool) {
	route, err := e.router.Route(ctx, pos, e.dest)
	if err != nil {
		e.log.Warn("eta recompute failed, keeping previous estimate",
			zap.String("trigger", string(trigger)),
			zap.Bool("has_previous", e.hasCurrent),
			zap.Error(err))
		return e.current, false
	}

	now := e.now()
	e.current = Estimate{
		ETASeconds:   int64(math.Round(route.DurationSeconds)),
		DistanceKm:   route.DistanceMeters / 1000,
		CalculatedAt: now,
	}
	e.hasCurrent = true
	e.calculated = true
	e.lastCalcAt = now
	e.lastCalcPos = pos

	e.log.Debug("eta recomputed",
		zap.String("trigger", string(trigger)),
		zap.Int64("eta_seconds", e.current.ETASeconds),
		zap.Float64("distance_km", e.current.DistanceKm))
	return e.current, true
}
