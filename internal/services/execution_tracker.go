package services

import (
	"context"
	"errors"
	"fmt"
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/platform/obs"
	"nemt-trip-service/internal/ports"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExecutionTracker drives a trip's execution: live status, arrivals, and the
// reconciliation ledger. Every call runs under the per-trip lock.
type ExecutionTracker struct {
	Trips      ports.TripRepository
	Executions ports.ExecutionRepository
	Locker     ports.TripLocker
	Directions ports.DirectionsProvider

	// OnTimeGrace is how far an arrival may drift from plan and still be on time.
	OnTimeGrace time.Duration

	Now   func() time.Time
	NewID func() string
}

func NewExecutionTracker(
	trips ports.TripRepository,
	executions ports.ExecutionRepository,
	locker ports.TripLocker,
	directions ports.DirectionsProvider,
	onTimeGrace time.Duration,
) *ExecutionTracker {
	return &ExecutionTracker{
		Trips:       trips,
		Executions:  executions,
		Locker:      locker,
		Directions:  directions,
		OnTimeGrace: onTimeGrace,
		Now:         time.Now,
		NewID:       uuid.NewString,
	}
}

func (s *ExecutionTracker) lock(ctx context.Context, op, tripID string) (func(), error) {
	unlock, err := s.Locker.Lock(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("%s trip %s: %w", op, tripID, err)
	}
	return unlock, nil
}

// withExecution loads the trip and its execution under the lock, applies fn
// and saves the execution. The trip is only saved when fn reports it changed.
func (s *ExecutionTracker) withExecution(
	ctx context.Context,
	op, tenantID, tripID string,
	fn func(*domain.Trip, *domain.TripExecution) (tripChanged bool, err error),
) (_ *domain.TripExecution, err error) {
	defer obs.Time(ctx, "executions."+op)(&err)

	unlock, err := s.lock(ctx, op, tripID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	trip, err := s.Trips.Get(ctx, tenantID, tripID)
	if err != nil {
		return nil, fmt.Errorf("%s trip %s: %w", op, tripID, err)
	}

	exec, err := s.Executions.GetByTrip(ctx, tenantID, tripID)
	if err != nil {
		return nil, fmt.Errorf("%s trip %s: load execution: %w", op, tripID, err)
	}

	tripChanged, err := fn(trip, exec)
	if err != nil {
		return nil, fmt.Errorf("%s trip %s: %w", op, tripID, err)
	}

	if err := s.Executions.Save(ctx, exec); err != nil {
		return nil, fmt.Errorf("%s trip %s: save execution: %w", op, tripID, err)
	}

	if tripChanged {
		trip.UpdatedAt = s.Now()
		if err := s.Trips.Save(ctx, trip); err != nil {
			return nil, fmt.Errorf("%s trip %s: save trip: %w", op, tripID, err)
		}
	}

	return exec, nil
}

// Start moves a scheduled trip to InProgress and creates its execution.
func (s *ExecutionTracker) Start(ctx context.Context, tenantID, tripID string) (_ *domain.TripExecution, err error) {
	defer obs.Time(ctx, "executions.start")(&err)

	unlock, err := s.lock(ctx, "start", tripID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	trip, err := s.Trips.Get(ctx, tenantID, tripID)
	if err != nil {
		return nil, fmt.Errorf("start trip %s: %w", tripID, err)
	}

	// A trip left InProgress without an execution (failed create after the
	// trip save) gets its execution created here instead of being stuck.
	recovering := false
	if trip.Status == domain.TripInProgress {
		if _, err := s.Executions.GetByTrip(ctx, tenantID, tripID); errors.Is(err, domain.ErrNotFound) {
			recovering = true
		}
	}

	if !recovering {
		if err := trip.Start(); err != nil {
			return nil, fmt.Errorf("start trip %s: %w", tripID, err)
		}
	}

	now := s.Now()
	exec, err := domain.NewTripExecution(s.NewID(), trip, now)
	if err != nil {
		return nil, fmt.Errorf("start trip %s: %w", tripID, err)
	}

	if !recovering {
		trip.UpdatedAt = now
		if err := s.Trips.Save(ctx, trip); err != nil {
			return nil, fmt.Errorf("start trip %s: save trip: %w", tripID, err)
		}
	}

	if err := s.Executions.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("start trip %s: create execution: %w", tripID, err)
	}

	return exec, nil
}

func (s *ExecutionTracker) Get(ctx context.Context, tenantID, tripID string) (*domain.TripExecution, error) {
	exec, err := s.Executions.GetByTrip(ctx, tenantID, tripID)
	if err != nil {
		return nil, fmt.Errorf("get execution for trip %s: %w", tripID, err)
	}
	return exec, nil
}

func requireInProgress(t *domain.Trip) error {
	if t.Status != domain.TripInProgress {
		return fmt.Errorf("trip is %s: %w", t.Status, domain.ErrNotInProgress)
	}
	return nil
}

func (s *ExecutionTracker) Advance(ctx context.Context, tenantID, tripID string, to domain.LiveStatus) (*domain.TripExecution, error) {
	return s.withExecution(ctx, "advance", tenantID, tripID, func(t *domain.Trip, e *domain.TripExecution) (bool, error) {
		if err := requireInProgress(t); err != nil {
			return false, err
		}
		return false, e.Advance(to)
	})
}

// RecordArrival stores the advisory on-time status for an arrival.
func (s *ExecutionTracker) RecordArrival(ctx context.Context, tenantID, tripID string, planned, actual time.Time) (*domain.TripExecution, error) {
	return s.withExecution(ctx, "record arrival", tenantID, tripID, func(t *domain.Trip, e *domain.TripExecution) (bool, error) {
		if err := requireInProgress(t); err != nil {
			return false, err
		}
		e.RecordArrival(planned, actual, s.OnTimeGrace)
		return false, nil
	})
}

func (s *ExecutionTracker) prepare(t *domain.Trip, r *domain.StopReconciliation) error {
	if _, ok := t.Stop(r.StopID); !ok {
		return fmt.Errorf("stop %s: %w", r.StopID, domain.ErrNotFound)
	}
	if strings.TrimSpace(r.ID) == "" {
		r.ID = s.NewID()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.Now()
	}
	return nil
}

// Record appends a reconciliation for one of the trip's stops. On a
// DuplicateReconciliation the effective entry is returned with the error so
// a retrying client can see what was accepted.
func (s *ExecutionTracker) Record(
	ctx context.Context,
	tenantID, tripID string,
	r domain.StopReconciliation,
) (domain.StopReconciliation, error) {
	var entry domain.StopReconciliation

	_, err := s.withExecution(ctx, "record reconciliation", tenantID, tripID, func(t *domain.Trip, e *domain.TripExecution) (bool, error) {
		if err := requireInProgress(t); err != nil {
			return false, err
		}
		if err := s.prepare(t, &r); err != nil {
			return false, err
		}

		var err error
		entry, err = e.Record(r)
		if err != nil {
			entry, _ = e.Effective(r.StopID)
		}
		return false, err
	})

	return entry, err
}

// Amend supersedes the stop's effective reconciliation with r. Corrections
// are accepted after completion but not once the trip has been canceled.
func (s *ExecutionTracker) Amend(
	ctx context.Context,
	tenantID, tripID string,
	r domain.StopReconciliation,
	reason string,
) (domain.StopReconciliation, error) {
	var entry domain.StopReconciliation

	_, err := s.withExecution(ctx, "amend reconciliation", tenantID, tripID, func(t *domain.Trip, e *domain.TripExecution) (bool, error) {
		switch t.Status {
		case domain.TripInProgress, domain.TripCompleted, domain.TripIncomplete:
		default:
			return false, fmt.Errorf("trip is %s: %w", t.Status, domain.ErrNotInProgress)
		}
		if err := s.prepare(t, &r); err != nil {
			return false, err
		}

		var err error
		entry, err = e.Amend(r, reason)
		return false, err
	})

	return entry, err
}

// Complete finishes the execution and the trip. Every trip stop must carry a
// completed reconciliation and the vehicle must be waiting at the dropoff.
// The execution is saved before the trip, so a retry after a failed trip save
// only moves the trip forward.
func (s *ExecutionTracker) Complete(ctx context.Context, tenantID, tripID string) (*domain.TripExecution, error) {
	return s.withExecution(ctx, "complete", tenantID, tripID, func(t *domain.Trip, e *domain.TripExecution) (bool, error) {
		if err := requireInProgress(t); err != nil {
			return false, err
		}

		// An earlier call finished the execution but failed to save the trip.
		if e.LiveStatus == domain.LiveCompleted {
			return true, t.Complete()
		}

		ids := make([]string, 0, len(t.Stops))
		for _, st := range t.Stops {
			ids = append(ids, st.ID)
		}

		if err := e.Complete(ids, s.Now()); err != nil {
			return false, err
		}
		return true, t.Complete()
	})
}

// Fail aborts the execution and marks the trip Incomplete. An execution
// already aborted by an earlier attempt is left as is.
func (s *ExecutionTracker) Fail(ctx context.Context, tenantID, tripID, reason string) (*domain.TripExecution, error) {
	return s.withExecution(ctx, "fail", tenantID, tripID, func(t *domain.Trip, e *domain.TripExecution) (bool, error) {
		if err := requireInProgress(t); err != nil {
			return false, err
		}
		if e.LiveStatus != domain.LiveAborted {
			if err := e.Abort(s.Now()); err != nil {
				return false, err
			}
		}
		return true, t.MarkIncomplete(reason)
	})
}

// ReportIncident records an incident on a running trip. Driver, vehicle and
// route come from the trip's assignment, and the passengers on board are
// derived from the ledger when the report does not list them.
func (s *ExecutionTracker) ReportIncident(ctx context.Context, tenantID, tripID string, inc domain.Incident) (domain.Incident, error) {
	var out domain.Incident

	_, err := s.withExecution(ctx, "report incident", tenantID, tripID, func(t *domain.Trip, e *domain.TripExecution) (bool, error) {
		if err := requireInProgress(t); err != nil {
			return false, err
		}
		if strings.TrimSpace(inc.ID) == "" {
			inc.ID = s.NewID()
		}
		if inc.ReportedAt.IsZero() {
			inc.ReportedAt = s.Now()
		}
		inc.RouteID = e.RouteID
		if a := t.Assignment; a != nil {
			inc.DriverID = a.DriverID
			inc.VehicleID = a.VehicleID
		}
		if inc.PassengerIDsOnBoard == nil {
			inc.PassengerIDsOnBoard = e.PassengersOnBoard(t.Stops)
		}

		var err error
		out, err = e.ReportIncident(inc)
		return false, err
	})

	return out, err
}

// ResolveIncident closes an incident, also after the trip has finished.
func (s *ExecutionTracker) ResolveIncident(
	ctx context.Context,
	tenantID, tripID, incidentID, actor, notes string,
	actions []string,
) (domain.Incident, error) {
	var out domain.Incident

	_, err := s.withExecution(ctx, "resolve incident", tenantID, tripID, func(t *domain.Trip, e *domain.TripExecution) (bool, error) {
		var err error
		out, err = e.ResolveIncident(incidentID, actor, notes, actions, s.Now())
		return false, err
	})

	return out, err
}

// UpdateApproachRoute stores directions for the drive to the first pickup.
func (s *ExecutionTracker) UpdateApproachRoute(ctx context.Context, tenantID, tripID string, waypoints []domain.GpsLocation) (*domain.TripExecution, error) {
	return s.updateRoute(ctx, "update approach route", tenantID, tripID, waypoints, func(e *domain.TripExecution, d *domain.DirectionsData) {
		e.ApproachRoute = d
	})
}

// UpdateLiveRoute stores directions for the path the vehicle is currently on.
func (s *ExecutionTracker) UpdateLiveRoute(ctx context.Context, tenantID, tripID string, waypoints []domain.GpsLocation) (*domain.TripExecution, error) {
	return s.updateRoute(ctx, "update live route", tenantID, tripID, waypoints, func(e *domain.TripExecution, d *domain.DirectionsData) {
		e.LiveRoute = d
	})
}

func (s *ExecutionTracker) updateRoute(
	ctx context.Context,
	op, tenantID, tripID string,
	waypoints []domain.GpsLocation,
	set func(*domain.TripExecution, *domain.DirectionsData),
) (*domain.TripExecution, error) {
	if s.Directions == nil {
		return nil, fmt.Errorf("%s: no directions provider configured", op)
	}

	return s.withExecution(ctx, op, tenantID, tripID, func(t *domain.Trip, e *domain.TripExecution) (bool, error) {
		if err := requireInProgress(t); err != nil {
			return false, err
		}
		d, err := s.Directions.GetDirections(ctx, waypoints)
		if err != nil {
			return false, fmt.Errorf("get directions: %w", err)
		}
		set(e, &d)
		return false, nil
	})
}
