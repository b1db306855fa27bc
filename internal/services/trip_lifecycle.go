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

// TripLifecycle applies trip status transitions under the per-trip lock and
// persists them with an optimistic version check.
type TripLifecycle struct {
	Trips      ports.TripRepository
	Executions ports.ExecutionRepository
	Locker     ports.TripLocker
	Directions ports.DirectionsProvider

	Now   func() time.Time
	NewID func() string
}

func NewTripLifecycle(
	trips ports.TripRepository,
	executions ports.ExecutionRepository,
	locker ports.TripLocker,
	directions ports.DirectionsProvider,
) *TripLifecycle {
	return &TripLifecycle{
		Trips:      trips,
		Executions: executions,
		Locker:     locker,
		Directions: directions,
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

func (s *TripLifecycle) Create(ctx context.Context, trip *domain.Trip) (err error) {
	defer obs.Time(ctx, "trips.Create")(&err)

	if trip == nil {
		return errors.New("create trip: trip must be non-nil")
	}
	if strings.TrimSpace(trip.TenantID) == "" {
		return fmt.Errorf("create trip: tenant id is required: %w", domain.ErrInvalid)
	}
	if strings.TrimSpace(trip.ID) == "" {
		trip.ID = s.NewID()
	}
	if trip.Status == "" {
		trip.Status = domain.TripPendingApproval
	}
	if trip.Status != domain.TripPendingApproval {
		return fmt.Errorf("create trip %s: new trips must be %s, got %s: %w", trip.ID, domain.TripPendingApproval, trip.Status, domain.ErrInvalid)
	}
	if err := trip.ReplaceStops(trip.Stops); err != nil {
		return fmt.Errorf("create trip %s: %w", trip.ID, err)
	}

	now := s.Now()
	trip.CreatedAt = now
	trip.UpdatedAt = now
	trip.Version = 0

	if err := s.Trips.Create(ctx, trip); err != nil {
		return fmt.Errorf("create trip %s: %w", trip.ID, err)
	}
	return nil
}

func (s *TripLifecycle) Get(ctx context.Context, tenantID, tripID string) (*domain.Trip, error) {
	trip, err := s.Trips.Get(ctx, tenantID, tripID)
	if err != nil {
		return nil, fmt.Errorf("get trip %s: %w", tripID, err)
	}
	return trip, nil
}

// List returns the tenant's trips, optionally filtered by status.
func (s *TripLifecycle) List(ctx context.Context, tenantID string, status domain.TripStatus) ([]*domain.Trip, error) {
	trips, err := s.Trips.List(ctx, tenantID, status)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	return trips, nil
}

// mutate loads the trip under its lock, applies fn and saves the result.
// Nothing is saved when fn fails.
func (s *TripLifecycle) mutate(
	ctx context.Context,
	op, tenantID, tripID string,
	fn func(*domain.Trip) error,
) (_ *domain.Trip, err error) {
	defer obs.Time(ctx, "trips."+op)(&err)

	unlock, err := s.Locker.Lock(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("%s trip %s: %w", op, tripID, err)
	}
	defer unlock()

	trip, err := s.Trips.Get(ctx, tenantID, tripID)
	if err != nil {
		return nil, fmt.Errorf("%s trip %s: %w", op, tripID, err)
	}

	if err := fn(trip); err != nil {
		return nil, fmt.Errorf("%s trip %s: %w", op, tripID, err)
	}

	trip.UpdatedAt = s.Now()
	if err := s.Trips.Save(ctx, trip); err != nil {
		return nil, fmt.Errorf("%s trip %s: save: %w", op, tripID, err)
	}

	return trip, nil
}

func (s *TripLifecycle) Approve(ctx context.Context, tenantID, tripID string) (*domain.Trip, error) {
	return s.mutate(ctx, "approve", tenantID, tripID, func(t *domain.Trip) error {
		return t.Approve()
	})
}

func (s *TripLifecycle) Reject(ctx context.Context, tenantID, tripID, reason string) (*domain.Trip, error) {
	return s.mutate(ctx, "reject", tenantID, tripID, func(t *domain.Trip) error {
		return t.Reject(reason)
	})
}

// Schedule commits the trip to a route. routeStops is the full stop sequence
// of that route; when empty, the trip's own stops are checked alone.
func (s *TripLifecycle) Schedule(
	ctx context.Context,
	tenantID, tripID string,
	a domain.Assignment,
	routeStops []domain.Stop,
) (*domain.Trip, error) {
	return s.mutate(ctx, "schedule", tenantID, tripID, func(t *domain.Trip) error {
		return t.Schedule(a, routeStops)
	})
}

func (s *TripLifecycle) ReplaceStops(ctx context.Context, tenantID, tripID string, stops []domain.PassengerStop) (*domain.Trip, error) {
	return s.mutate(ctx, "replace stops", tenantID, tripID, func(t *domain.Trip) error {
		return t.ReplaceStops(stops)
	})
}

// Cancel ends the trip. When the trip is already executing, every effective
// reconciliation is superseded by a voided entry and the execution is aborted
// before the trip itself is marked canceled.
func (s *TripLifecycle) Cancel(ctx context.Context, tenantID, tripID, actor, reason string) (*domain.Trip, error) {
	return s.mutate(ctx, "cancel", tenantID, tripID, func(t *domain.Trip) error {
		wasInProgress := t.Status == domain.TripInProgress
		if err := t.Cancel(reason); err != nil {
			return err
		}
		if !wasInProgress {
			return nil
		}

		exec, err := s.Executions.GetByTrip(ctx, tenantID, tripID)
		if err != nil {
			return fmt.Errorf("load execution: %w", err)
		}

		now := s.Now()
		if _, err := exec.VoidOpen(s.NewID, actor, t.CancellationReason, now); err != nil {
			return err
		}
		if !exec.LiveStatus.IsTerminal() {
			if err := exec.Abort(now); err != nil {
				return err
			}
		}

		if err := s.Executions.Save(ctx, exec); err != nil {
			return fmt.Errorf("save execution: %w", err)
		}
		return nil
	})
}

// AttachPlannedRoute fetches directions through the given waypoints and
// stores them on the trip.
func (s *TripLifecycle) AttachPlannedRoute(
	ctx context.Context,
	tenantID, tripID string,
	waypoints []domain.GpsLocation,
) (*domain.Trip, error) {
	if s.Directions == nil {
		return nil, errors.New("attach planned route: no directions provider configured")
	}

	return s.mutate(ctx, "attach planned route", tenantID, tripID, func(t *domain.Trip) error {
		if t.Status.IsTerminal() {
			return fmt.Errorf("trip is %s: %w", t.Status, domain.ErrInvalid)
		}

		d, err := s.Directions.GetDirections(ctx, waypoints)
		if err != nil {
			return fmt.Errorf("get directions: %w", err)
		}
		t.PlannedRoute = &d
		return nil
	})
}
