package domain

import (
	"errors"
	"testing"
)

func newTestTrip(t *testing.T) *Trip {
	t.Helper()

	seat := CapacityRequirements{AmbulatorySeats: 1}
	trip, err := NewTrip("trip-1", "tenant-1", "passenger-1", "fund-1", []PassengerStop{
		pickup("stop-1", seat),
		dropoff("stop-2", seat),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trip.CapacityRequirements = seat
	return trip
}

func testAssignment() Assignment {
	return Assignment{
		RouteID:         "route-1",
		DriverID:        "driver-1",
		VehicleID:       "vehicle-1",
		VehicleCapacity: CapacityRequirements{AmbulatorySeats: 4},
	}
}

func requireInvalidTransition(t *testing.T, err error) *InvalidTransition {
	t.Helper()

	var it *InvalidTransition
	if !errors.As(err, &it) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
	return it
}

func TestTripHappyPath(t *testing.T) {
	trip := newTestTrip(t)

	if trip.Status != TripPendingApproval {
		t.Fatalf("initial status = %s, want %s", trip.Status, TripPendingApproval)
	}
	if err := trip.Approve(); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := trip.Schedule(testAssignment(), nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if trip.Assignment == nil || trip.Assignment.RouteID != "route-1" {
		t.Fatalf("assignment not recorded: %+v", trip.Assignment)
	}
	if err := trip.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := trip.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if trip.Status != TripCompleted {
		t.Fatalf("status = %s, want %s", trip.Status, TripCompleted)
	}
}

func TestTripApproveTwiceIsInvalid(t *testing.T) {
	trip := newTestTrip(t)

	if err := trip.Approve(); err != nil {
		t.Fatalf("approve: %v", err)
	}

	it := requireInvalidTransition(t, trip.Approve())
	if it.From != string(TripApproved) || it.To != string(TripApproved) {
		t.Fatalf("transition = %s -> %s, want approved -> approved", it.From, it.To)
	}
	if trip.Status != TripApproved {
		t.Fatalf("status changed to %s", trip.Status)
	}
}

func TestTripTerminalStatesAdmitNoTransitions(t *testing.T) {
	terminal := []TripStatus{TripRejected, TripCompleted, TripIncomplete, TripCanceled}
	all := []TripStatus{
		TripPendingApproval, TripApproved, TripRejected, TripScheduled,
		TripInProgress, TripCompleted, TripIncomplete, TripCanceled,
	}

	for _, from := range terminal {
		if !from.IsTerminal() {
			t.Fatalf("%s should be terminal", from)
		}
		for _, to := range all {
			if CanTransitionTrip(from, to) {
				t.Fatalf("transition %s -> %s should not be allowed", from, to)
			}
		}

		trip := newTestTrip(t)
		trip.Status = from
		requireInvalidTransition(t, trip.Approve())
		requireInvalidTransition(t, trip.Cancel("late"))
		requireInvalidTransition(t, trip.Reject("duplicate"))
		requireInvalidTransition(t, trip.Start())
		if trip.Status != from {
			t.Fatalf("status moved from terminal %s to %s", from, trip.Status)
		}
	}
}

func TestTripRejectAndCancelRequireReason(t *testing.T) {
	trip := newTestTrip(t)

	requireInvalidTransition(t, trip.Reject("  "))
	requireInvalidTransition(t, trip.Cancel(""))

	if err := trip.Reject("not eligible"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if trip.RejectionReason != "not eligible" {
		t.Fatalf("rejection reason = %q", trip.RejectionReason)
	}
}

func TestTripScheduleGuards(t *testing.T) {
	t.Run("requires approval", func(t *testing.T) {
		trip := newTestTrip(t)
		requireInvalidTransition(t, trip.Schedule(testAssignment(), nil))
	})

	t.Run("requires route", func(t *testing.T) {
		trip := newTestTrip(t)
		_ = trip.Approve()
		a := testAssignment()
		a.RouteID = ""
		requireInvalidTransition(t, trip.Schedule(a, nil))
	})

	t.Run("requires net-zero stops", func(t *testing.T) {
		trip := newTestTrip(t)
		_ = trip.Approve()
		trip.Stops = trip.Stops[:1]
		it := requireInvalidTransition(t, trip.Schedule(testAssignment(), nil))
		if trip.Status != TripApproved {
			t.Fatalf("status = %s, want approved (%v)", trip.Status, it)
		}
	})

	t.Run("requires capacity on route", func(t *testing.T) {
		trip := newTestTrip(t)
		_ = trip.Approve()

		seat := CapacityRequirements{AmbulatorySeats: 1}
		a := testAssignment()
		a.VehicleCapacity = seat
		routeStops := []Stop{
			pickup("other-p", seat),
			trip.Stops[0],
			trip.Stops[1],
			dropoff("other-d", seat),
		}

		err := trip.Schedule(a, routeStops)
		requireInvalidTransition(t, err)

		var cv *CapacityViolation
		if !errors.As(err, &cv) || cv.StopID != "stop-1" {
			t.Fatalf("expected capacity violation at stop-1, got %v", err)
		}
	})

	t.Run("checks route with stored trip stops", func(t *testing.T) {
		chair := CapacityRequirements{WheelchairSpaces: 1}
		trip, err := NewTrip("trip-2", "tenant-1", "passenger-1", "fund-1", []PassengerStop{
			pickup("p", chair),
			dropoff("d", chair),
		})
		if err != nil {
			t.Fatalf("new trip: %v", err)
		}
		_ = trip.Approve()

		a := testAssignment()
		a.VehicleCapacity = chair

		// Same ids as the trip, but the deltas were zeroed by the caller.
		forged := []Stop{
			pickup("other-p", chair),
			pickup("p", CapacityRequirements{}),
			dropoff("d", CapacityRequirements{}),
			dropoff("other-d", chair),
		}

		err = trip.Schedule(a, forged)
		requireInvalidTransition(t, err)

		var cv *CapacityViolation
		if !errors.As(err, &cv) || cv.StopID != "p" || cv.Kind != CapacityWheelchair {
			t.Fatalf("expected wheelchair violation at p, got %v", err)
		}
		if trip.Status != TripApproved {
			t.Fatalf("status = %s, want approved", trip.Status)
		}
	})

	t.Run("stop deltas raise required capacity", func(t *testing.T) {
		chair := CapacityRequirements{WheelchairSpaces: 1}
		trip, err := NewTrip("trip-3", "tenant-1", "passenger-1", "fund-1", []PassengerStop{
			pickup("p", chair),
			dropoff("d", chair),
		})
		if err != nil {
			t.Fatalf("new trip: %v", err)
		}
		_ = trip.Approve()

		if got := trip.RequiredCapacity(); got != chair {
			t.Fatalf("required capacity = %s, want %s", got, chair)
		}

		a := testAssignment()
		a.VehicleCapacity = CapacityRequirements{}
		requireInvalidTransition(t, trip.Schedule(a, nil))
	})

	t.Run("requires trip stops on route", func(t *testing.T) {
		trip := newTestTrip(t)
		_ = trip.Approve()
		requireInvalidTransition(t, trip.Schedule(testAssignment(), []Stop{trip.Stops[0]}))
	})

	t.Run("requires vehicle to fit trip capacity", func(t *testing.T) {
		trip := newTestTrip(t)
		_ = trip.Approve()
		trip.CapacityRequirements = CapacityRequirements{WheelchairSpaces: 1}
		requireInvalidTransition(t, trip.Schedule(testAssignment(), nil))
	})
}

func TestTripReplaceStopsRejectsNonNetZero(t *testing.T) {
	trip := newTestTrip(t)
	before := trip.Stops

	err := trip.ReplaceStops([]PassengerStop{pickup("p", CapacityRequirements{AmbulatorySeats: 1})})
	if !errors.Is(err, ErrNotNetZero) {
		t.Fatalf("expected ErrNotNetZero, got %v", err)
	}
	if len(trip.Stops) != len(before) {
		t.Fatalf("stops replaced despite error")
	}

	chair := CapacityRequirements{WheelchairSpaces: 1}
	if err := trip.AppendStops(pickup("p2", chair), dropoff("d2", chair)); err != nil {
		t.Fatalf("append stops: %v", err)
	}
	if len(trip.Stops) != 4 {
		t.Fatalf("len(stops) = %d, want 4", len(trip.Stops))
	}
}

func TestTripReplaceStopsAfterStartIsRefused(t *testing.T) {
	trip := newTestTrip(t)
	_ = trip.Approve()
	_ = trip.Schedule(testAssignment(), nil)
	_ = trip.Start()

	if err := trip.ReplaceStops(trip.Stops); err == nil {
		t.Fatalf("expected error replacing stops on an in-progress trip")
	}
}

func TestTripReplaceStopsWhenScheduledChecksVehicle(t *testing.T) {
	trip := newTestTrip(t)
	_ = trip.Approve()
	if err := trip.Schedule(testAssignment(), nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	chair := CapacityRequirements{WheelchairSpaces: 1}
	err := trip.ReplaceStops([]PassengerStop{pickup("p", chair), dropoff("d", chair)})
	var cv *CapacityViolation
	if !errors.As(err, &cv) {
		t.Fatalf("expected CapacityViolation, got %v", err)
	}
}
