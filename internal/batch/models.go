package batch

import (
	"encoding/json"
	"time"

	"backend-rxdispatch/internal/planner"
	"backend-rxdispatch/internal/pricing"
	"backend-rxdispatch/internal/shared/geo"
)

// Batch is a planned, priced multi-stop delivery as persisted.
type Batch struct {
	ID              string             `json:"id"`
	Origin          geo.Point          `json:"origin"`
	Waypoints       []planner.Waypoint `json:"waypoints"`
	TotalDistanceKm float64            `json:"total_distance_km"`
	TotalDurationS  float64            `json:"total_duration_s"`
	Geometry        json.RawMessage    `json:"geometry,omitempty"`
	Price           float64            `json:"price"`
	PricingMode     string             `json:"pricing_mode"`
	Breakdown       *pricing.Breakdown `json:"breakdown,omitempty"`
	CreatedBy       string             `json:"created_by,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// PlanRequest lists stops inline, by saved stop id, or both. Saved stops
// are appended after the inline ones.
type PlanRequest struct {
	Origin    geo.Point          `json:"origin"`
	Waypoints []planner.Waypoint `json:"waypoints"`
	StopIDs   []string           `json:"stop_ids,omitempty"`
}

func fromQuote(origin geo.Point, q planner.Quote, createdBy string) Batch {
	return Batch{
		Origin:          origin,
		Waypoints:       q.Route.Waypoints,
		TotalDistanceKm: q.Route.TotalDistanceKm,
		TotalDurationS:  q.Route.TotalDurationS,
		Geometry:        q.Route.Geometry,
		Price:           q.Price,
		PricingMode:     q.Mode,
		Breakdown:       q.Breakdown,
		CreatedBy:       createdBy,
	}
}
