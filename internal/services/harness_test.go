package services

import (
	"context"
	"fmt"
	"nemt-trip-service/internal/adapters/directions"
	"nemt-trip-service/internal/adapters/locks"
	"nemt-trip-service/internal/adapters/repositories"
	"nemt-trip-service/internal/domain"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const tenant = "tenant-1"

var (
	oneSeat   = domain.CapacityRequirements{AmbulatorySeats: 1}
	dropSeat  = domain.CapacityRequirements{AmbulatorySeats: -1}
	fourSeats = domain.CapacityRequirements{AmbulatorySeats: 4}
)

type harness struct {
	store      *repositories.MemoryStore
	executions *repositories.MemoryExecutions
	directions *directions.MockDirectionsProvider
	lifecycle  *TripLifecycle
	tracker    *ExecutionTracker
	now        time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := repositories.NewMemoryStore()
	execs := store.Executions()
	locker := locks.NewMemoryLocker()
	dirs := directions.NewMockDirectionsProvider(1200, 180)

	h := &harness{
		store:      store,
		executions: execs,
		directions: dirs,
		lifecycle:  NewTripLifecycle(store, execs, locker, dirs),
		tracker:    NewExecutionTracker(store, execs, locker, dirs, 5*time.Minute),
		now:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	var seq atomic.Int64
	newID := func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }
	clock := func() time.Time { return h.now }

	h.lifecycle.Now, h.lifecycle.NewID = clock, newID
	h.tracker.Now, h.tracker.NewID = clock, newID

	return h
}

func passengerStop(id string, typ domain.StopType, delta domain.CapacityRequirements) domain.PassengerStop {
	return domain.PassengerStop{
		BaseStop: domain.BaseStop{
			ID:       id,
			Type:     typ,
			Status:   domain.StopStatusPending,
			Duration: 5 * time.Minute,
		},
		PassengerID:   "pax-1",
		CapacityDelta: delta,
	}
}

func newTrip(id string) *domain.Trip {
	return &domain.Trip{
		ID:                   id,
		TenantID:             tenant,
		PassengerID:          "pax-1",
		FundingSourceID:      "medicaid",
		PickupType:           domain.PickupScheduled,
		CapacityRequirements: oneSeat,
		Stops: []domain.PassengerStop{
			passengerStop(id+"-pu", domain.StopTypePickup, oneSeat),
			passengerStop(id+"-do", domain.StopTypeDropoff, dropSeat),
		},
	}
}

func assignment() domain.Assignment {
	return domain.Assignment{RouteID: "route-1", DriverID: "d-ann", VehicleID: "v-van", VehicleCapacity: fourSeats}
}

// scheduled creates a trip and walks it to Scheduled.
func (h *harness) scheduled(t *testing.T, id string) *domain.Trip {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, h.lifecycle.Create(ctx, newTrip(id)))
	_, err := h.lifecycle.Approve(ctx, tenant, id)
	require.NoError(t, err)
	trip, err := h.lifecycle.Schedule(ctx, tenant, id, assignment(), nil)
	require.NoError(t, err)
	return trip
}

// started creates a trip and walks it to InProgress.
func (h *harness) started(t *testing.T, id string) *domain.TripExecution {
	t.Helper()
	h.scheduled(t, id)
	exec, err := h.tracker.Start(context.Background(), tenant, id)
	require.NoError(t, err)
	return exec
}

func signed(stopID string, outcome domain.StopOutcome, delta domain.CapacityRequirements) domain.StopReconciliation {
	return domain.StopReconciliation{
		StopID:              stopID,
		Outcome:             outcome,
		ActualCapacityDelta: delta,
		VerifiedBy:          "d-ann",
		VerificationMethod:  domain.MethodSignature,
		SignatureData:       "data:image/png;base64,AAAA",
	}
}
