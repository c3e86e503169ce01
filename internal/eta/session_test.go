package eta

import (
	"context"
	"testing"
	"time"

	"backend-rxdispatch/internal/directions"
)

func TestSessionPublishesOnPosition(t *testing.T) {
	r := &fakeRouter{route: directions.Route{DistanceMeters: 1500, DurationSeconds: 240}}
	engine := NewEngine(r, destination, Policy{Interval: time.Hour, DistanceThresholdM: 200})

	published := make(chan Estimate, 4)
	s := NewSession(engine, func(e Estimate) { published <- e })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Offer(start)
	select {
	case est := <-published:
		if est.ETASeconds != 240 || est.DistanceKm != 1.5 {
			t.Fatalf("unexpected estimate %+v", est)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for estimate")
	}

	s.Offer(near)
	select {
	case est := <-published:
		t.Fatalf("unexpected publish %+v", est)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionFallbackTimer(t *testing.T) {
	r := &fakeRouter{route: directions.Route{DurationSeconds: 100}}
	engine := NewEngine(r, destination, Policy{Interval: 20 * time.Millisecond, DistanceThresholdM: 200})

	published := make(chan Estimate, 16)
	s := NewSession(engine, func(e Estimate) { published <- e })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Offer(start)
	for i := 0; i < 3; i++ {
		select {
		case <-published:
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for estimate %d", i)
		}
	}
	if r.Calls() < 3 {
		t.Fatalf("expected timer driven recomputes, got %d calls", r.Calls())
	}
}

func TestSessionTimerFollowsLastComputation(t *testing.T) {
	const interval = 200 * time.Millisecond
	r := &fakeRouter{route: directions.Route{DurationSeconds: 100}}
	engine := NewEngine(r, destination, Policy{Interval: interval, DistanceThresholdM: 200})

	published := make(chan time.Time, 8)
	s := NewSession(engine, func(Estimate) { published <- time.Now() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	wait := func() time.Time {
		t.Helper()
		select {
		case at := <-published:
			return at
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for estimate")
		}
		return time.Time{}
	}

	s.Offer(start)
	wait()
	time.Sleep(interval * 3 / 10)
	s.Offer(far)
	moved := wait()

	// A ticker fixed to the session start would skip the next tick and
	// fire about 1.7 intervals after the distance recompute.
	if gap := wait().Sub(moved); gap > interval*7/5 {
		t.Fatalf("fallback fired %v after the last computation, want about %v", gap, interval)
	}
}

func TestSessionOfferIsLatestWins(t *testing.T) {
	s := NewSession(NewEngine(&fakeRouter{}, destination, DefaultPolicy), func(Estimate) {})
	s.Offer(start)
	s.Offer(near)
	s.Offer(far)

	if got := <-s.inbox; got != far {
		t.Fatalf("expected latest position, got %+v", got)
	}
	select {
	case p := <-s.inbox:
		t.Fatalf("unexpected queued position %+v", p)
	default:
	}
}

func TestSessionStopsOnCancel(t *testing.T) {
	s := NewSession(NewEngine(&fakeRouter{}, destination, DefaultPolicy), func(Estimate) {})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("session did not stop")
	}
}
