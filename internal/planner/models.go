package planner

import (
	"encoding/json"

	"backend-rxdispatch/internal/pricing"
	"backend-rxdispatch/internal/shared/geo"
)

// Waypoint is one delivery stop. Identity and metadata travel through
// planning untouched; only the order changes.
type Waypoint struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
	Name    string  `json:"name,omitempty"`
}

func (w Waypoint) Point() geo.Point {
	return geo.Point{Lat: w.Lat, Lng: w.Lng}
}

// OptimizedRoute is immutable once produced.
type OptimizedRoute struct {
	Waypoints       []Waypoint      `json:"waypoints"`
	TotalDistanceKm float64         `json:"total_distance_km"`
	TotalDurationS  float64         `json:"total_duration_s"`
	Geometry        json.RawMessage `json:"geometry"`
}

const (
	ModeSimple   = "simple"
	ModeDetailed = "detailed"
)

type Quote struct {
	Route     OptimizedRoute     `json:"route"`
	Price     float64            `json:"price"`
	Mode      string             `json:"pricing_mode"`
	Breakdown *pricing.Breakdown `json:"breakdown,omitempty"`
}
