package directions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"backend-rxdispatch/internal/shared/geo"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	return NewClient(Options{BaseURL: srv.URL, Token: "tok", Timeout: timeout}), &calls
}

var (
	store    = geo.Point{Lat: 40.4168, Lng: -3.7038}
	customer = geo.Point{Lat: 40.4300, Lng: -3.6900}
)

func TestRoute(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/directions/v5/mapbox/driving/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if !strings.HasSuffix(r.URL.Path, "-3.703800,40.416800;-3.690000,40.430000") {
			t.Errorf("unexpected coordinates in %q", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "tok" {
			t.Errorf("missing access token")
		}
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":2140.5,"duration":311.7,"geometry":{"type":"LineString","coordinates":[[-3.7,40.4],[-3.69,40.43]]}}]}`))
	}, time.Second)

	route, err := client.Route(context.Background(), store, customer)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route.DistanceMeters != 2140.5 || route.DurationSeconds != 311.7 {
		t.Fatalf("unexpected route %+v", route)
	}
	if !strings.Contains(string(route.Geometry), "LineString") {
		t.Fatalf("expected geometry passthrough, got %s", route.Geometry)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", atomic.LoadInt32(calls))
	}
}

func TestRouteNoRoute(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":"NoRoute","message":"no route","routes":[]}`))
	}, time.Second)

	_, err := client.Route(context.Background(), store, customer)
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestRouteUpstreamStatusIsNotRetried(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("busy"))
	}, time.Second)

	_, err := client.Route(context.Background(), store, customer)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusServiceUnavailable || ue.Body != "busy" {
		t.Fatalf("unexpected upstream error %+v", ue)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", atomic.LoadInt32(calls))
	}
}

func TestRouteNonSuccessStatusIsNotDecoded(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMultipleChoices)
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":1000,"duration":60}]}`))
	}, time.Second)

	_, err := client.Route(context.Background(), store, customer)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusMultipleChoices {
		t.Fatalf("unexpected upstream error %+v", ue)
	}
}

func TestRouteTimeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[]}`))
	}, 50*time.Millisecond)

	_, err := client.Route(context.Background(), store, customer)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !ue.Timeout() {
		t.Fatalf("expected timeout classification, got %v", ue)
	}
}

func TestRouteBadJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{`))
	}, time.Second)

	_, err := client.Route(context.Background(), store, customer)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestRouteInvalidCoordinates(t *testing.T) {
	client, calls := newTestClient(t, func(http.ResponseWriter, *http.Request) {}, time.Second)

	_, err := client.Route(context.Background(), geo.Point{Lat: 91}, customer)
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("expected no provider call")
	}
}

func TestOptimize(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/optimized-trips/v1/mapbox/driving/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("source") != "first" || q.Get("destination") != "last" || q.Get("roundtrip") != "false" {
			t.Errorf("unexpected trip constraints %v", q)
		}
		// input 0 visited first, input 2 second, input 1 third, input 3 last
		_, _ = w.Write([]byte(`{"code":"Ok",
			"trips":[{"distance":12500,"duration":1800,"geometry":{"type":"LineString","coordinates":[]}}],
			"waypoints":[{"waypoint_index":0},{"waypoint_index":2},{"waypoint_index":1},{"waypoint_index":3}]}`))
	}, time.Second)

	points := []geo.Point{store, {Lat: 40.42, Lng: -3.70}, {Lat: 40.41, Lng: -3.71}, customer}
	trip, err := client.Optimize(context.Background(), points)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	want := []int{0, 2, 1, 3}
	for i := range want {
		if trip.Order[i] != want[i] {
			t.Fatalf("order = %v, want %v", trip.Order, want)
		}
	}
	if trip.DistanceMeters != 12500 || trip.DurationSeconds != 1800 {
		t.Fatalf("unexpected totals %+v", trip.Route)
	}
}

func TestOptimizeRejectsBrokenPermutation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":"Ok","trips":[{"distance":1,"duration":1}],
			"waypoints":[{"waypoint_index":0},{"waypoint_index":0}]}`))
	}, time.Second)

	_, err := client.Optimize(context.Background(), []geo.Point{store, customer})
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestOptimizeNoTrips(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":"NoTrips","trips":[]}`))
	}, time.Second)

	_, err := client.Optimize(context.Background(), []geo.Point{store, customer})
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestOptimizeTooFewPoints(t *testing.T) {
	client, calls := newTestClient(t, func(http.ResponseWriter, *http.Request) {}, time.Second)

	if _, err := client.Optimize(context.Background(), []geo.Point{store}); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("expected ErrTooFewPoints, got %v", err)
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("expected no provider call")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Options{})
	if c.baseURL != defaultBaseURL || c.profile != defaultProfile || c.timeout != defaultTimeout {
		t.Fatalf("unexpected defaults %+v", c)
	}
}
