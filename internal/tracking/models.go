package tracking

import "time"

type LocationPoint struct {
	ID         int64     `json:"id"`
	TrackingID string    `json:"tracking_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    *float64  `json:"heading,omitempty"`
	SpeedMps   *float64  `json:"speed_mps,omitempty"`
	AccuracyM  *float64  `json:"accuracy_m,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}

type Summary struct {
	TrackingID      string     `json:"tracking_id"`
	PointCount      int        `json:"point_count"`
	DistanceM       float64    `json:"distance_m"`
	DurationSec     int64      `json:"duration_sec"`
	AverageSpeedMps float64    `json:"average_speed_mps"`
	FirstAt         *time.Time `json:"first_at,omitempty"`
	LastAt          *time.Time `json:"last_at,omitempty"`
}
