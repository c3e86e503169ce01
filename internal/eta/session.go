package eta

import (
	"context"
	"time"

	"backend-rxdispatch/internal/shared/geo"
)

// Session runs one Engine for one observer connection. Positions are
// coalesced latest-wins while a provider call is in flight.
type Session struct {
	engine  *Engine
	inbox   chan geo.Point
	publish func(Estimate)
}

func NewSession(engine *Engine, publish func(Estimate)) *Session {
	return &Session{
		engine:  engine,
		inbox:   make(chan geo.Point, 1),
		publish: publish,
	}
}

// Offer never blocks; an unread older position is replaced.
func (s *Session) Offer(pos geo.Point) {
	for {
		select {
		case s.inbox <- pos:
			return
		default:
		}
		select {
		case <-s.inbox:
		default:
		}
	}
}

// Run drives the engine until ctx is done. The fallback timer is re-armed
// after every event so it always counts from the latest computation.
func (s *Session) Run(ctx context.Context) {
	timer := time.NewTimer(s.engine.NextTick())
	defer timer.Stop()

	rearm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.engine.NextTick())
	}

	for {
		select {
		case <-ctx.Done():
			return
		case pos := <-s.inbox:
			if est, ok := s.engine.Observe(ctx, pos); ok {
				s.publish(est)
			}
		case <-timer.C:
			if est, ok := s.engine.Tick(ctx); ok {
				s.publish(est)
			}
		}
		rearm()
	}
}
