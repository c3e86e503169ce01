package tracking

import (
	"context"
	"errors"
	"fmt"

	"backend-rxdispatch/internal/db"
	"backend-rxdispatch/internal/shared/geo"
	"backend-rxdispatch/internal/stream"
)

var ErrNoDatabase = errors.New("tracking: database not configured")

// Service keeps the durable location history the relay itself does not.
type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

// PublishLocation lets the hub hand accepted samples to the history.
func (s *Service) PublishLocation(ctx context.Context, sample stream.Sample) error {
	_, err := s.Record(ctx, sample)
	return err
}

func (s *Service) Record(ctx context.Context, sample stream.Sample) (LocationPoint, error) {
	if s.db == nil {
		return LocationPoint{}, ErrNoDatabase
	}
	p := LocationPoint{
		TrackingID: sample.TrackingID,
		Lat:        sample.Lat,
		Lng:        sample.Lng,
		Heading:    sample.Heading,
		SpeedMps:   sample.Speed,
		AccuracyM:  sample.Accuracy,
		RecordedAt: sample.Timestamp,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO delivery_locations (tracking_id, location, heading, speed_mps, accuracy_m, recorded_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2,$3), 4326)::geography, $4, $5, $6, $7)
		RETURNING id, created_at
	`, p.TrackingID, p.Lng, p.Lat, p.Heading, p.SpeedMps, p.AccuracyM, p.RecordedAt)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return LocationPoint{}, fmt.Errorf("insert location: %w", err)
	}
	return p, nil
}

// Points returns the history in recording order. limit <= 0 means all.
func (s *Service) Points(ctx context.Context, trackingID string, limit int) ([]LocationPoint, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	query := `
		SELECT id, tracking_id, ST_Y(location::geometry), ST_X(location::geometry), heading, speed_mps, accuracy_m, recorded_at, created_at
		FROM delivery_locations WHERE tracking_id=$1
		ORDER BY recorded_at, id
	`
	args := []any{trackingID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	points := []LocationPoint{}
	for rows.Next() {
		var p LocationPoint
		if err := rows.Scan(&p.ID, &p.TrackingID, &p.Lat, &p.Lng, &p.Heading, &p.SpeedMps, &p.AccuracyM, &p.RecordedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return points, nil
}

// Summary sums the haversine legs between consecutive recorded points.
func (s *Service) Summary(ctx context.Context, trackingID string) (Summary, error) {
	points, err := s.Points(ctx, trackingID, 0)
	if err != nil {
		return Summary{}, err
	}
	return summarize(trackingID, points), nil
}

func summarize(trackingID string, points []LocationPoint) Summary {
	sum := Summary{TrackingID: trackingID, PointCount: len(points)}
	if len(points) == 0 {
		return sum
	}

	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		sum.DistanceM += geo.DistanceM(
			geo.Point{Lat: prev.Lat, Lng: prev.Lng},
			geo.Point{Lat: cur.Lat, Lng: cur.Lng},
		)
	}

	first, last := points[0].RecordedAt, points[len(points)-1].RecordedAt
	sum.FirstAt, sum.LastAt = &first, &last
	duration := last.Sub(first)
	sum.DurationSec = int64(duration.Seconds())
	if duration.Seconds() > 0 {
		sum.AverageSpeedMps = sum.DistanceM / duration.Seconds()
	}
	return sum
}
