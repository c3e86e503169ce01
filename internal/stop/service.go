package stop

import (
	"context"
	"errors"
	"fmt"

	"backend-rxdispatch/internal/db"
	"backend-rxdispatch/internal/planner"
	"backend-rxdispatch/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
)

var (
	ErrNoDatabase  = errors.New("stop: database not configured")
	ErrNotFound    = errors.New("stop: not found")
	ErrInvalidStop = errors.New("stop: invalid stop")
)

const selectStop = `
	SELECT id, name, address, ST_Y(location::geometry), ST_X(location::geometry), notes, created_by, created_at
	FROM delivery_stops`

type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

func validate(s Stop) error {
	if s.Name == "" || s.Address == "" {
		return fmt.Errorf("%w: name and address required", ErrInvalidStop)
	}
	if !s.Point().Valid() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidStop)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in Stop) (Stop, error) {
	if err := validate(in); err != nil {
		return Stop{}, err
	}
	if s.db == nil {
		return Stop{}, ErrNoDatabase
	}
	in.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO delivery_stops (id, name, address, location, notes, created_by)
		VALUES ($1,$2,$3, ST_SetSRID(ST_MakePoint($4,$5), 4326)::geography, $6, $7)
		RETURNING created_at
	`, in.ID, in.Name, in.Address, in.Lng, in.Lat, in.Notes, in.CreatedBy)
	if err := row.Scan(&in.CreatedAt); err != nil {
		return Stop{}, fmt.Errorf("insert stop: %w", err)
	}
	return in, nil
}

func (s *Service) Get(ctx context.Context, id string) (Stop, error) {
	if s.db == nil {
		return Stop{}, ErrNoDatabase
	}
	st, err := scanStop(s.db.QueryRow(ctx, selectStop+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Stop{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Stop{}, fmt.Errorf("get stop: %w", err)
	}
	return st, nil
}

// Update applies the non-zero fields of patch. Coordinates move only when
// both are given.
func (s *Service) Update(ctx context.Context, id string, patch Stop) (Stop, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return Stop{}, err
	}
	if patch.Name != "" {
		st.Name = patch.Name
	}
	if patch.Address != "" {
		st.Address = patch.Address
	}
	if patch.Notes != "" {
		st.Notes = patch.Notes
	}
	if patch.Lat != 0 && patch.Lng != 0 {
		st.Lat, st.Lng = patch.Lat, patch.Lng
	}
	if err := validate(st); err != nil {
		return Stop{}, err
	}

	_, err = s.db.Exec(ctx, `
		UPDATE delivery_stops
		SET name=$2, address=$3, location=ST_SetSRID(ST_MakePoint($4,$5), 4326)::geography, notes=$6
		WHERE id=$1
	`, st.ID, st.Name, st.Address, st.Lng, st.Lat, st.Notes)
	if err != nil {
		return Stop{}, fmt.Errorf("update stop: %w", err)
	}
	return st, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM delivery_stops WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete stop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Nearby lists stops within radiusKm of p, closest first.
func (s *Service) Nearby(ctx context.Context, p geo.Point, radiusKm float64) ([]Stop, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, selectStop+`
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography, $3)
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography)
	`, p.Lng, p.Lat, radiusKm*1000)
	if err != nil {
		return nil, fmt.Errorf("search stops: %w", err)
	}
	return collect(rows)
}

// Resolve turns stop ids into planner waypoints, keeping the caller's
// order. Any unknown id fails the whole lookup.
func (s *Service) Resolve(ctx context.Context, ids []string) ([]planner.Waypoint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, selectStop+` WHERE id = ANY($1)`, lo.Uniq(ids))
	if err != nil {
		return nil, fmt.Errorf("resolve stops: %w", err)
	}
	found, err := collect(rows)
	if err != nil {
		return nil, err
	}

	byID := lo.KeyBy(found, func(st Stop) string { return st.ID })
	out := make([]planner.Waypoint, 0, len(ids))
	for _, id := range ids {
		st, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		out = append(out, st.Waypoint())
	}
	return out, nil
}

func scanStop(row pgx.Row) (Stop, error) {
	var st Stop
	err := row.Scan(&st.ID, &st.Name, &st.Address, &st.Lat, &st.Lng, &st.Notes, &st.CreatedBy, &st.CreatedAt)
	return st, err
}

func collect(rows pgx.Rows) ([]Stop, error) {
	defer rows.Close()

	stops := []Stop{}
	for rows.Next() {
		st, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stops = append(stops, st)
	}
	return stops, rows.Err()
}
