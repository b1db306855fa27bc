package services

import (
	"errors"
	"fmt"
	"nemt-trip-service/internal/domain"
	"slices"
	"time"
)

// LegTimer returns the drive time into next. prev is nil for the first stop.
type LegTimer func(prev, next domain.Stop) time.Duration

// FixedLeg times every leg the same.
func FixedLeg(d time.Duration) LegTimer {
	return func(_, _ domain.Stop) time.Duration { return d }
}

// SequenceClock anchors a stop sequence in time so arrivals can be projected.
// A nil Leg means zero drive time between stops.
type SequenceClock struct {
	Start time.Time
	Leg   LegTimer
}

func (c SequenceClock) travel(stops []domain.Stop) []time.Duration {
	out := make([]time.Duration, len(stops))
	if c.Leg == nil {
		return out
	}
	var prev domain.Stop
	for i, s := range stops {
		out[i] = c.Leg(prev, s)
		prev = s
	}
	return out
}

// A stop list with its projected arrivals and every time-window miss.
// Misses are reported, never corrected.
type Sequence struct {
	Stops      []domain.Stop         `json:"-"`
	Arrivals   []time.Time           `json:"arrivals"`
	Violations []TimeWindowViolation `json:"violations"`
}

func (s Sequence) WithinTimeWindows() bool {
	return len(s.Violations) == 0
}

// TimeSequence projects arrivals for stops and checks their time windows.
func TimeSequence(stops []domain.Stop, clock SequenceClock) (Sequence, error) {
	if clock.Start.IsZero() {
		return Sequence{}, errors.New("time sequence: start time is required")
	}

	arrivals, err := ProjectArrivals(clock.Start, stops, clock.travel(stops))
	if err != nil {
		return Sequence{}, fmt.Errorf("time sequence: %w", err)
	}

	violations, err := CheckTimeWindows(stops, arrivals)
	if err != nil {
		return Sequence{}, fmt.Errorf("time sequence: %w", err)
	}

	return Sequence{Stops: stops, Arrivals: arrivals, Violations: violations}, nil
}

// InsertStop returns a copy of stops with stop placed at index, provided the
// resulting sequence keeps the running load within capacity. The new order is
// then timed against clock and any time-window misses come back with it. The
// input slice is never modified.
func InsertStop(
	stops []domain.Stop,
	stop domain.Stop,
	index int,
	capacity domain.CapacityRequirements,
	clock SequenceClock,
) (Sequence, error) {
	if stop == nil {
		return Sequence{}, errors.New("insert stop: stop must be non-nil")
	}
	if index < 0 || index > len(stops) {
		return Sequence{}, fmt.Errorf("insert stop: index %d out of range [0, %d]", index, len(stops))
	}
	for _, s := range stops {
		if s.StopID() == stop.StopID() {
			return Sequence{}, fmt.Errorf("insert stop: duplicate stop id %s", stop.StopID())
		}
	}

	next := slices.Insert(slices.Clone(stops), index, stop)
	if err := domain.ValidateCapacity(next, capacity); err != nil {
		return Sequence{}, fmt.Errorf("insert stop %s at %d: %w", stop.StopID(), index, err)
	}

	seq, err := TimeSequence(next, clock)
	if err != nil {
		return Sequence{}, fmt.Errorf("insert stop %s at %d: %w", stop.StopID(), index, err)
	}
	return seq, nil
}

// ReorderStops returns the stops in the order given by stop ids, timed
// against clock. order must name every stop exactly once.
func ReorderStops(
	stops []domain.Stop,
	order []string,
	capacity domain.CapacityRequirements,
	clock SequenceClock,
) (Sequence, error) {
	if len(order) != len(stops) {
		return Sequence{}, fmt.Errorf("reorder stops: got %d ids for %d stops", len(order), len(stops))
	}

	byID := make(map[string]domain.Stop, len(stops))
	for _, s := range stops {
		byID[s.StopID()] = s
	}

	next := make([]domain.Stop, 0, len(order))
	for _, id := range order {
		s, ok := byID[id]
		if !ok {
			return Sequence{}, fmt.Errorf("reorder stops: unknown or repeated stop id %s", id)
		}
		delete(byID, id)
		next = append(next, s)
	}

	if err := domain.ValidateCapacity(next, capacity); err != nil {
		return Sequence{}, fmt.Errorf("reorder stops: %w", err)
	}

	seq, err := TimeSequence(next, clock)
	if err != nil {
		return Sequence{}, fmt.Errorf("reorder stops: %w", err)
	}
	return seq, nil
}

// ProjectArrivals derives arrival times from a start time and the travel time
// leading into each stop. travel[i] is the drive before stop i; each stop then
// occupies its own Duration before the vehicle departs.
func ProjectArrivals(start time.Time, stops []domain.Stop, travel []time.Duration) ([]time.Time, error) {
	if len(travel) != len(stops) {
		return nil, fmt.Errorf("project arrivals: got %d travel legs for %d stops", len(travel), len(stops))
	}

	arrivals := make([]time.Time, 0, len(stops))
	at := start
	for i, s := range stops {
		if travel[i] < 0 {
			return nil, fmt.Errorf("project arrivals: negative travel time before stop %s", s.StopID())
		}
		at = at.Add(travel[i])
		arrivals = append(arrivals, at)
		at = at.Add(s.Base().Duration)
	}

	return arrivals, nil
}

// A stop whose assumed arrival satisfies none of its time windows.
type TimeWindowViolation struct {
	StopIndex int       `json:"stop_index"`
	StopID    string    `json:"stop_id"`
	Arrival   time.Time `json:"arrival"`
	Reasons   []string  `json:"reasons"`
}

// CheckTimeWindows reports every stop whose arrival falls outside all of its
// windows. A stop with no windows is always feasible. Nothing is reordered.
func CheckTimeWindows(stops []domain.Stop, arrivals []time.Time) ([]TimeWindowViolation, error) {
	if len(arrivals) != len(stops) {
		return nil, fmt.Errorf("check time windows: got %d arrivals for %d stops", len(arrivals), len(stops))
	}

	var out []TimeWindowViolation
	for i, s := range stops {
		base := s.Base()
		if len(base.TimeWindows) == 0 {
			continue
		}

		reasons := make([]string, 0, len(base.TimeWindows))
		ok := false
		for _, w := range base.TimeWindows {
			fits, reason := w.Check(arrivals[i], base.Duration)
			if fits {
				ok = true
				break
			}
			reasons = append(reasons, reason)
		}

		if !ok {
			out = append(out, TimeWindowViolation{
				StopIndex: i,
				StopID:    s.StopID(),
				Arrival:   arrivals[i],
				Reasons:   reasons,
			})
		}
	}

	return out, nil
}
