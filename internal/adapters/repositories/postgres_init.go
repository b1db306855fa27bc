package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"nemt-trip-service/internal/domain"
	"os"
	"strings"
	"time"
)

// Initialize the Postgres database schema.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createTripsQuery := `
	CREATE TABLE IF NOT EXISTS trips (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		status TEXT NOT NULL,
		body JSONB NOT NULL,
		version BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);
	`

	createTripsIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_trips_tenant_status
	ON trips(tenant_id, status);
	`

	createExecutionsQuery := `
	CREATE TABLE IF NOT EXISTS trip_executions (
		tenant_id TEXT NOT NULL,
		trip_id TEXT NOT NULL,
		id TEXT NOT NULL UNIQUE,
		live_status TEXT NOT NULL,
		body JSONB NOT NULL,
		version BIGINT NOT NULL,
		PRIMARY KEY (tenant_id, trip_id),
		FOREIGN KEY (tenant_id, trip_id) REFERENCES trips(tenant_id, id)
	);
	`

	// Ledger rows are only ever inserted; seq is the entry's position.
	createReconciliationsQuery := `
	CREATE TABLE IF NOT EXISTS stop_reconciliations (
		tenant_id TEXT NOT NULL,
		trip_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL,
		stop_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		body JSONB NOT NULL,
		PRIMARY KEY (tenant_id, trip_id, seq),
		FOREIGN KEY (tenant_id, trip_id) REFERENCES trip_executions(tenant_id, trip_id)
	);
	`

	createDirectionsCacheQuery := `
	CREATE TABLE IF NOT EXISTS directions_cache (
		waypoints_key TEXT PRIMARY KEY,
		encoded_polyline TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL
	);
	`

	statements := []string{
		createTripsQuery,
		createTripsIndexQuery,
		createExecutionsQuery,
		createReconciliationsQuery,
		createDirectionsCacheQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// ParseTripSeeds validates seed trips: ids and tenant are required, stops must
// be net-zero, and every trip starts PendingApproval. Later statuses are only
// reachable through the lifecycle.
func ParseTripSeeds(data []byte) ([]*domain.Trip, error) {
	var trips []*domain.Trip
	if err := json.Unmarshal(data, &trips); err != nil {
		return nil, fmt.Errorf("seed trips: parse json: %w", err)
	}

	for i, t := range trips {
		if t == nil {
			return nil, fmt.Errorf("seed trips: item at index %d is null", i+1)
		}
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.TenantID) == "" {
			return nil, fmt.Errorf("seed trips: item at index %d: id and tenant_id are required", i+1)
		}
		if !domain.NetZero(t.Stops) {
			return nil, fmt.Errorf("seed trips: trip %s: %w", t.ID, domain.ErrNotNetZero)
		}
		if t.Status == "" {
			t.Status = domain.TripPendingApproval
		}
		if t.Status != domain.TripPendingApproval {
			return nil, fmt.Errorf("seed trips: trip %s: seeds must be %s, got %s: %w",
				t.ID, domain.TripPendingApproval, t.Status, domain.ErrInvalid)
		}
	}

	return trips, nil
}

// A trip that already exists is left alone, whatever its status.
const seedTripQuery = `
	INSERT INTO trips (tenant_id, id, status, body, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, 1, $5, $5)
	ON CONFLICT (tenant_id, id) DO NOTHING;
	`

// Populate the database with trips from a JSON file.
func SeedFromJSON(db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed trips: read %q: %w", jsonPath, err)
	}

	trips, err := ParseTripSeeds(bytes)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed trips: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(seedTripQuery)
	if err != nil {
		return fmt.Errorf("seed trips: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range trips {
		t.CreatedAt, t.UpdatedAt = now, now
		body, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("seed trips: marshal trip %s: %w", t.ID, err)
		}
		if _, err := stmt.Exec(t.TenantID, t.ID, string(t.Status), body, now); err != nil {
			return fmt.Errorf("seed trips: insert trip %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed trips: commit tx: %w", err)
	}

	return nil
}
