package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/platform/obs"
	"strings"
)

// SQLDirectionsCache is a SQL-backed cache of directions keyed by the
// normalized waypoint list.
type SQLDirectionsCache struct {
	DB *sql.DB
}

func NewSQLDirectionsCache(db *sql.DB) *SQLDirectionsCache {
	return &SQLDirectionsCache{DB: db}
}

// Get returns the cached directions for key; ok is false on a miss.
func (s *SQLDirectionsCache) Get(ctx context.Context, key string) (_ domain.DirectionsData, ok bool, err error) {
	defer obs.Time(ctx, "directions.cache.Get")(&err)

	if s.DB == nil {
		return domain.DirectionsData{}, false, errors.New("directions cache: db is nil")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return domain.DirectionsData{}, false, errors.New("get directions cache: key must not be empty")
	}

	q := `
	SELECT encoded_polyline, distance_meters, duration_seconds
	FROM directions_cache
	WHERE waypoints_key = $1;
	`

	var encoded string
	var meters, seconds int
	err = s.DB.QueryRowContext(ctx, q, key).Scan(&encoded, &meters, &seconds)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DirectionsData{}, false, nil
	}
	if err != nil {
		return domain.DirectionsData{}, false, fmt.Errorf("get directions cache: query directions_cache table: %w", err)
	}

	return domain.DirectionsData{
		EncodedPolyline: encoded,
		Distance:        domain.NewDistance(meters),
		Duration:        domain.NewDuration(seconds),
	}, true, nil
}

// Put stores directions for key, replacing an existing entry.
func (s *SQLDirectionsCache) Put(ctx context.Context, key string, d domain.DirectionsData) error {
	if s.DB == nil {
		return errors.New("directions cache: db is nil")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("insert directions cache: key must not be empty")
	}
	if d.Distance == nil || d.Duration == nil {
		return errors.New("insert directions cache: distance and duration are required")
	}

	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO directions_cache (waypoints_key, encoded_polyline, distance_meters, duration_seconds)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (waypoints_key) DO UPDATE
	SET encoded_polyline = EXCLUDED.encoded_polyline,
		distance_meters = EXCLUDED.distance_meters,
		duration_seconds = EXCLUDED.duration_seconds;
	`, key, d.EncodedPolyline, d.Distance.ValueInMeters, d.Duration.ValueInSeconds)
	if err != nil {
		return fmt.Errorf("insert directions cache key=%q: %w", key, err)
	}

	return nil
}
