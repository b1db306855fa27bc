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

// Postgres-backed ExecutionRepository and ReconciliationReader.
//
// Reconciliations live in their own table and are only ever inserted: Save
// appends the entries past the stored ledger length and refuses a ledger that
// is shorter than what is stored.
type PostgresExecutionRepository struct{ DB *sql.DB }

func NewPostgresExecutionRepository(db *sql.DB) *PostgresExecutionRepository {
	return &PostgresExecutionRepository{DB: db}
}

func (s *PostgresExecutionRepository) GetByTrip(ctx context.Context, tenantID, tripID string) (_ *domain.TripExecution, err error) {
	defer obs.Time(ctx, "executions.repo.GetByTrip")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres execution repository: DB is nil")
	}

	var body []byte
	var version int64
	err = s.DB.QueryRowContext(ctx, `
	SELECT body, version
	FROM trip_executions
	WHERE tenant_id = $1 AND trip_id = $2;
	`, tenantID, tripID).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution for trip %s: %w", tripID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get execution for trip %s: %w", tripID, err)
	}

	var e domain.TripExecution
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("get execution for trip %s: decode body: %w", tripID, err)
	}
	e.Version = version

	e.Reconciliations, err = s.ListReconciliations(ctx, tenantID, tripID)
	if err != nil {
		return nil, fmt.Errorf("get execution for trip %s: %w", tripID, err)
	}

	return &e, nil
}

// ListReconciliations returns the full ledger, superseded entries included,
// in the order entries were appended.
func (s *PostgresExecutionRepository) ListReconciliations(ctx context.Context, tenantID, tripID string) ([]domain.StopReconciliation, error) {
	rows, err := s.DB.QueryContext(ctx, `
	SELECT body
	FROM stop_reconciliations
	WHERE tenant_id = $1 AND trip_id = $2
	ORDER BY seq;
	`, tenantID, tripID)
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: query: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StopReconciliation, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("list reconciliations: scan row: %w", err)
		}
		var r domain.StopReconciliation
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("list reconciliations: decode row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reconciliations: row iteration: %w", err)
	}

	return out, nil
}

// executionBody is the JSONB column; the ledger is stored separately.
func executionBody(e *domain.TripExecution) ([]byte, error) {
	c := *e
	c.Reconciliations = nil
	return json.Marshal(&c)
}

func (s *PostgresExecutionRepository) Create(ctx context.Context, exec *domain.TripExecution) (err error) {
	defer obs.Time(ctx, "executions.repo.Create")(&err)

	if s.DB == nil {
		return errors.New("postgres execution repository: DB is nil")
	}

	exec.Version = 1
	body, err := executionBody(exec)
	if err != nil {
		return fmt.Errorf("create execution %s: marshal: %w", exec.ID, err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create execution %s: db begin: %w", exec.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO trip_executions (tenant_id, trip_id, id, live_status, body, version)
	VALUES ($1, $2, $3, $4, $5, $6);
	`, exec.TenantID, exec.TripID, exec.ID, string(exec.LiveStatus), body, exec.Version); err != nil {
		return fmt.Errorf("create execution %s: %w", exec.ID, err)
	}

	if err := appendReconciliations(ctx, tx, exec, 0); err != nil {
		return fmt.Errorf("create execution %s: %w", exec.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create execution %s: commit: %w", exec.ID, err)
	}
	return nil
}

func (s *PostgresExecutionRepository) Save(ctx context.Context, exec *domain.TripExecution) (err error) {
	defer obs.Time(ctx, "executions.repo.Save")(&err)

	if s.DB == nil {
		return errors.New("postgres execution repository: DB is nil")
	}

	body, err := executionBody(exec)
	if err != nil {
		return fmt.Errorf("save execution %s: marshal: %w", exec.ID, err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save execution %s: db begin: %w", exec.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	UPDATE trip_executions
	SET live_status = $3, body = $4, version = version + 1
	WHERE tenant_id = $1 AND trip_id = $2 AND version = $5;
	`, exec.TenantID, exec.TripID, string(exec.LiveStatus), body, exec.Version)
	if err != nil {
		return fmt.Errorf("save execution %s: %w", exec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save execution %s: rows affected: %w", exec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("save execution %s: version %d is stale or missing: %w", exec.ID, exec.Version, domain.ErrVersionConflict)
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `
	SELECT COUNT(*)
	FROM stop_reconciliations
	WHERE tenant_id = $1 AND trip_id = $2;
	`, exec.TenantID, exec.TripID).Scan(&stored); err != nil {
		return fmt.Errorf("save execution %s: count ledger: %w", exec.ID, err)
	}
	if len(exec.Reconciliations) < stored {
		return fmt.Errorf("save execution %s: reconciliation ledger cannot shrink (%d < %d)", exec.ID, len(exec.Reconciliations), stored)
	}

	if err := appendReconciliations(ctx, tx, exec, stored); err != nil {
		return fmt.Errorf("save execution %s: %w", exec.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save execution %s: commit: %w", exec.ID, err)
	}

	exec.Version++
	return nil
}

func appendReconciliations(ctx context.Context, tx *sql.Tx, exec *domain.TripExecution, from int) error {
	if from >= len(exec.Reconciliations) {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO stop_reconciliations (tenant_id, trip_id, seq, id, stop_id, outcome, body)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
	`)
	if err != nil {
		return fmt.Errorf("append reconciliations: db prepare: %w", err)
	}
	defer stmt.Close()

	for seq := from; seq < len(exec.Reconciliations); seq++ {
		r := exec.Reconciliations[seq]
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("append reconciliations: marshal %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, exec.TenantID, exec.TripID, seq, r.ID, r.StopID, string(r.Outcome), body); err != nil {
			return fmt.Errorf("append reconciliations: insert %s: %w", r.ID, err)
		}
	}
	return nil
}
