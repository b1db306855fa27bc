package services

import (
	"context"
	"errors"
	"fmt"
	"nemt-trip-service/internal/domain"
	"slices"
	"strings"
	"time"
)

// An admissible driver+vehicle for a trip and where its stops fit on the route.
type Proposal struct {
	Evaluation Evaluation        `json:"evaluation"`
	Assignment domain.Assignment `json:"assignment"`
	InsertAt   int               `json:"insert_at"`
	Stops      domain.StopList   `json:"stops"`
	Arrivals   []time.Time       `json:"arrivals,omitempty"`
}

// ProposeAssignment picks a candidate for a trip using a simple heuristic.
//
// Candidates are ranked by the evaluator, then each admissible one is tried in
// rank order: the trip's stops are placed as one block on the route, starting
// from the end and moving earlier, until the running load fits the vehicle.
// When the route has an estimated start time, a placement must also keep
// every stop inside its time windows, with legs timed by leg.
// This is a deterministic shortcut, not a route optimizer; it never reorders
// the stops already on the route.
func ProposeAssignment(
	ctx context.Context,
	evaluator *ConstraintEvaluator,
	trip *domain.Trip,
	route domain.Route,
	candidates []domain.Candidate,
	leg LegTimer,
) (*Proposal, error) {
	if trip == nil {
		return nil, errors.New("propose assignment: trip must be non-nil")
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("propose assignment for trip %s: candidate list must not be empty: %w", trip.ID, domain.ErrInvalid)
	}
	if !domain.NetZero(trip.Stops) {
		return nil, fmt.Errorf("propose assignment for trip %s: %w", trip.ID, domain.ErrNotNetZero)
	}

	ranked, err := evaluator.RankCandidates(ctx, trip.Constraints, candidates)
	if err != nil {
		return nil, fmt.Errorf("propose assignment for trip %s: %w", trip.ID, err)
	}

	tripStops := domain.PassengerStops(trip.Stops)

	var clock *SequenceClock
	if !route.EstimatedStartTime.IsZero() {
		clock = &SequenceClock{Start: route.EstimatedStartTime, Leg: leg}
	}

	var lastErr error
	for _, ev := range ranked {
		if !ev.Admissible {
			// Ranked list puts admissible first; the rest only explain the failure.
			if lastErr == nil {
				lastErr = ev.Err()
			}
			break
		}

		vehicle := ev.Candidate.Vehicle
		if required := trip.RequiredCapacity(); !required.Fits(vehicle.CapacityProfile) {
			lastErr = fmt.Errorf("vehicle %s provides %s, trip requires %s",
				vehicle.ID, vehicle.CapacityProfile, required)
			continue
		}

		seq, at, err := insertTripBlock(route.Stops, tripStops, vehicle.CapacityProfile, clock)
		if err != nil {
			lastErr = fmt.Errorf("vehicle %s: %w", vehicle.ID, err)
			continue
		}

		return &Proposal{
			Evaluation: ev,
			Assignment: domain.Assignment{
				RouteID:         route.ID,
				DriverID:        ev.Candidate.Driver.ID,
				VehicleID:       vehicle.ID,
				VehicleCapacity: vehicle.CapacityProfile,
			},
			InsertAt: at,
			Stops:    seq.Stops,
			Arrivals: seq.Arrivals,
		}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("propose assignment for trip %s: %w: %w", trip.ID, domain.ErrNoCandidate, lastErr)
	}
	return nil, fmt.Errorf("propose assignment for trip %s: %w", trip.ID, domain.ErrNoCandidate)
}

// insertTripBlock returns the route with block inserted at the latest index
// where the running load stays within capacity and, given a clock, every
// stop meets its time windows.
func insertTripBlock(
	route, block []domain.Stop,
	capacity domain.CapacityRequirements,
	clock *SequenceClock,
) (Sequence, int, error) {
	var firstErr error
	for at := len(route); at >= 0; at-- {
		next := slices.Concat(route[:at], block, route[at:])
		err := domain.ValidateCapacity(next, capacity)
		if err == nil && clock == nil {
			return Sequence{Stops: next}, at, nil
		}
		if err == nil {
			var seq Sequence
			seq, err = TimeSequence(next, *clock)
			if err == nil && seq.WithinTimeWindows() {
				return seq, at, nil
			}
			if err == nil {
				err = missedWindows(seq.Violations)
			}
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return Sequence{}, 0, firstErr
}

func missedWindows(violations []TimeWindowViolation) error {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("stop %s: %s", v.StopID, strings.Join(v.Reasons, "; ")))
	}
	return fmt.Errorf("time windows missed: %s", strings.Join(parts, ", "))
}
