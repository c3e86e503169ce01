package stop

import (
	"time"

	"backend-rxdispatch/internal/planner"
	"backend-rxdispatch/internal/shared/geo"
)

// Stop is a saved delivery address (pharmacy, clinic, patient home) that
// batches can reference by id instead of repeating coordinates.
type Stop struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Notes     string    `json:"notes,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (s Stop) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lng: s.Lng}
}

func (s Stop) Waypoint() planner.Waypoint {
	return planner.Waypoint{ID: s.ID, Lat: s.Lat, Lng: s.Lng, Address: s.Address, Name: s.Name}
}
