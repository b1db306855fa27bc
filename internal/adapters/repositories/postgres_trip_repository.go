package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/platform/obs"
)

// Postgres-backed implementation of the TripRepository port. The aggregate is
// stored as JSONB; status and version are columns so they can be filtered and
// checked on write.
type PostgresTripRepository struct{ DB *sql.DB }

func NewPostgresTripRepository(db *sql.DB) *PostgresTripRepository {
	return &PostgresTripRepository{DB: db}
}

func scanTrip(row interface{ Scan(...any) error }) (*domain.Trip, error) {
	var body []byte
	var version int64
	if err := row.Scan(&body, &version); err != nil {
		return nil, err
	}

	var t domain.Trip
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decode trip body: %w", err)
	}
	t.Version = version
	return &t, nil
}

func (s *PostgresTripRepository) Get(ctx context.Context, tenantID, tripID string) (_ *domain.Trip, err error) {
	defer obs.Time(ctx, "trips.repo.Get")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres trip repository: DB is nil")
	}

	row := s.DB.QueryRowContext(ctx, `
	SELECT body, version
	FROM trips
	WHERE tenant_id = $1 AND id = $2;
	`, tenantID, tripID)

	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trip %s: %w", tripID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get trip %s: %w", tripID, err)
	}
	return t, nil
}

// List returns a tenant's trips ordered by id. An empty status lists all.
func (s *PostgresTripRepository) List(ctx context.Context, tenantID string, status domain.TripStatus) (_ []*domain.Trip, err error) {
	defer obs.Time(ctx, "trips.repo.List")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres trip repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT body, version
	FROM trips
	WHERE tenant_id = $1
		AND ($2 = '' OR status = $2)
	ORDER BY id;
	`, tenantID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list trips: query trips table: %w", err)
	}
	defer rows.Close()

	trips := make([]*domain.Trip, 0, 64)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("list trips: scan row: %w", err)
		}
		trips = append(trips, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trips: row iteration: %w", err)
	}

	return trips, nil
}

func (s *PostgresTripRepository) Create(ctx context.Context, trip *domain.Trip) (err error) {
	defer obs.Time(ctx, "trips.repo.Create")(&err)

	if s.DB == nil {
		return errors.New("postgres trip repository: DB is nil")
	}

	trip.Version = 1
	body, err := json.Marshal(trip)
	if err != nil {
		return fmt.Errorf("create trip %s: marshal: %w", trip.ID, err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO trips (tenant_id, id, status, body, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
	`, trip.TenantID, trip.ID, string(trip.Status), body, trip.Version, trip.CreatedAt, trip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create trip %s: %w", trip.ID, err)
	}
	return nil
}

// Save writes the trip only if the stored version still matches.
func (s *PostgresTripRepository) Save(ctx context.Context, trip *domain.Trip) (err error) {
	defer obs.Time(ctx, "trips.repo.Save")(&err)

	if s.DB == nil {
		return errors.New("postgres trip repository: DB is nil")
	}

	next := *trip
	next.Version = trip.Version + 1
	body, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("save trip %s: marshal: %w", trip.ID, err)
	}

	res, err := s.DB.ExecContext(ctx, `
	UPDATE trips
	SET status = $3, body = $4, version = $5, updated_at = $6
	WHERE tenant_id = $1 AND id = $2 AND version = $7;
	`, trip.TenantID, trip.ID, string(trip.Status), body, next.Version, trip.UpdatedAt, trip.Version)
	if err != nil {
		return fmt.Errorf("save trip %s: %w", trip.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save trip %s: rows affected: %w", trip.ID, err)
	}
	if n == 0 {
		if _, getErr := s.Get(ctx, trip.TenantID, trip.ID); errors.Is(getErr, domain.ErrNotFound) {
			return fmt.Errorf("save trip %s: %w", trip.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("save trip %s: version %d is stale: %w", trip.ID, trip.Version, domain.ErrVersionConflict)
	}

	trip.Version = next.Version
	return nil
}
