package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"backend-rxdispatch/internal/logging"
	"backend-rxdispatch/internal/shared/geo"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.mapbox.com"
	defaultProfile = "mapbox/driving"
	defaultTimeout = 10 * time.Second
)

type Options struct {
	BaseURL    string
	Token      string
	Profile    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to a Mapbox-compatible directions and optimization API.
// It holds no per-call state and is safe for concurrent use. Every call is
// a single attempt bounded by the configured timeout.
type Client struct {
	session *http.Client
	baseURL string
	token   string
	profile string
	timeout time.Duration
	log     *zap.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		session: opts.HTTPClient,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		profile: opts.Profile,
		timeout: opts.Timeout,
		log:     logging.OrNop(opts.Logger),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.profile == "" {
		c.profile = defaultProfile
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.session == nil {
		c.session = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Route returns the driving route between two coordinates.
func (c *Client) Route(ctx context.Context, from, to geo.Point) (_ Route, err error) {
	defer c.timed("directions.Route")(&err)

	if !from.Valid() || !to.Valid() {
		return Route{}, ErrInvalidCoordinates
	}

	endpoint := fmt.Sprintf("%s/directions/v5/%s/%s", c.baseURL, c.profile, joinCoords([]geo.Point{from, to}))
	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("overview", "full")

	var decoded routeResponse
	if err := c.get(ctx, "directions.Route", endpoint, q, &decoded); err != nil {
		return Route{}, err
	}
	if decoded.Code != "Ok" || len(decoded.Routes) == 0 {
		return Route{}, fmt.Errorf("%w: code=%s %s", ErrNoRoute, decoded.Code, decoded.Message)
	}

	r := decoded.Routes[0]
	return Route{
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
		Geometry:        r.Geometry,
	}, nil
}

// Optimize asks the provider to sequence points with the first fixed as
// source, the last fixed as destination and no return leg.
func (c *Client) Optimize(ctx context.Context, points []geo.Point) (_ Trip, err error) {
	defer c.timed("directions.Optimize")(&err)

	if len(points) < 2 {
		return Trip{}, ErrTooFewPoints
	}
	for i, p := range points {
		if !p.Valid() {
			return Trip{}, fmt.Errorf("%w: index %d", ErrInvalidCoordinates, i)
		}
	}

	endpoint := fmt.Sprintf("%s/optimized-trips/v1/%s/%s", c.baseURL, c.profile, joinCoords(points))
	q := url.Values{}
	q.Set("source", "first")
	q.Set("destination", "last")
	q.Set("roundtrip", "false")
	q.Set("geometries", "geojson")
	q.Set("overview", "full")

	var decoded tripResponse
	if err := c.get(ctx, "directions.Optimize", endpoint, q, &decoded); err != nil {
		return Trip{}, err
	}
	if decoded.Code != "Ok" || len(decoded.Trips) == 0 {
		return Trip{}, fmt.Errorf("%w: code=%s %s", ErrNoRoute, decoded.Code, decoded.Message)
	}

	order, err := tripOrder(len(points), decoded)
	if err != nil {
		return Trip{}, err
	}

	t := decoded.Trips[0]
	return Trip{
		Route: Route{
			DistanceMeters:  t.Distance,
			DurationSeconds: t.Duration,
			Geometry:        t.Geometry,
		},
		Order: order,
	}, nil
}

// tripOrder inverts the provider's waypoint_index mapping (input position to
// trip position) into the visiting order of input indices.
func tripOrder(n int, decoded tripResponse) ([]int, error) {
	if len(decoded.Waypoints) != n {
		return nil, fmt.Errorf("%w: got %d waypoints for %d coordinates", ErrNoRoute, len(decoded.Waypoints), n)
	}

	order := make([]int, n)
	seen := make([]bool, n)
	for input, wp := range decoded.Waypoints {
		pos := wp.WaypointIndex
		if pos < 0 || pos >= n || seen[pos] {
			return nil, fmt.Errorf("%w: invalid waypoint_index %d", ErrNoRoute, pos)
		}
		seen[pos] = true
		order[pos] = input
	}
	return order, nil
}

func (c *Client) get(ctx context.Context, op, endpoint string, q url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	q.Set("access_token", c.token)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.session.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) timed(op string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		fields := []zap.Field{zap.String("op", op), zap.Duration("dur", time.Since(start))}
		if errp != nil && *errp != nil {
			c.log.Warn("routing provider call failed", append(fields, zap.Error(*errp))...)
			return
		}
		c.log.Debug("routing provider call", fields...)
	}
}

func joinCoords(points []geo.Point) string {
	return strings.Join(lo.Map(points, func(p geo.Point, _ int) string { return p.LngLat() }), ";")
}
