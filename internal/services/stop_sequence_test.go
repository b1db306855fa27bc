package services

import (
	"nemt-trip-service/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripStops(id string) []domain.Stop {
	return domain.PassengerStops(newTrip(id).Stops)
}

var nineAM = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func tenMinuteLegs() SequenceClock {
	return SequenceClock{Start: nineAM, Leg: FixedLeg(10 * time.Minute)}
}

func TestInsertStopKeepsInputAndChecksLoad(t *testing.T) {
	stops := tripStops("a")
	extra := passengerStop("b-pu", domain.StopTypePickup, oneSeat)

	_, err := InsertStop(stops, extra, 1, oneSeat, tenMinuteLegs())
	var cv *domain.CapacityViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, 1, cv.StopIndex)
	assert.False(t, cv.Underflow)

	next, err := InsertStop(stops, extra, 2, oneSeat, tenMinuteLegs())
	require.NoError(t, err)
	assert.Len(t, next.Stops, 3)
	assert.Len(t, stops, 2)
	assert.Equal(t, "b-pu", next.Stops[2].StopID())
	assert.True(t, next.WithinTimeWindows())
	assert.Equal(t, nineAM.Add(10*time.Minute), next.Arrivals[0])
}

func TestInsertStopDriverServiceStop(t *testing.T) {
	brk := domain.DriverServiceStop{
		BaseStop: domain.BaseStop{ID: "break-1", Type: domain.StopTypeBreak, Duration: 30 * time.Minute},
		Location: domain.GpsLocation{Latitude: 34.05, Longitude: -118.24},
	}

	next, err := InsertStop(tripStops("a"), brk, 1, oneSeat, tenMinuteLegs())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-pu", "break-1", "a-do"}, stopIDs(next.Stops))
	// 09:10 pickup, 09:25 break, 10:05 dropoff after the 30 minute break.
	assert.Equal(t, nineAM.Add(65*time.Minute), next.Arrivals[2])
}

func TestInsertStopRejectsBadInput(t *testing.T) {
	stops := tripStops("a")

	_, err := InsertStop(stops, passengerStop("x", domain.StopTypePickup, oneSeat), 3, fourSeats, tenMinuteLegs())
	require.Error(t, err)

	_, err = InsertStop(stops, passengerStop("a-pu", domain.StopTypePickup, oneSeat), 0, fourSeats, tenMinuteLegs())
	require.Error(t, err)

	_, err = InsertStop(stops, nil, 0, fourSeats, tenMinuteLegs())
	require.Error(t, err)

	_, err = InsertStop(stops, passengerStop("x", domain.StopTypePickup, oneSeat), 0, fourSeats, SequenceClock{})
	require.Error(t, err)
}

func TestReorderStops(t *testing.T) {
	stops := append(tripStops("a"), tripStops("b")...)

	next, err := ReorderStops(stops, []string{"a-pu", "b-pu", "a-do", "b-do"}, fourSeats, tenMinuteLegs())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-pu", "b-pu", "a-do", "b-do"}, stopIDs(next.Stops))
	assert.Len(t, next.Arrivals, 4)

	_, err = ReorderStops(stops, []string{"a-do", "a-pu", "b-pu", "b-do"}, fourSeats, tenMinuteLegs())
	var cv *domain.CapacityViolation
	require.ErrorAs(t, err, &cv)
	assert.True(t, cv.Underflow)
	assert.Equal(t, "a-do", cv.StopID)

	_, err = ReorderStops(stops, []string{"a-pu", "a-pu", "b-pu", "b-do"}, fourSeats, tenMinuteLegs())
	require.Error(t, err)

	_, err = ReorderStops(stops, []string{"a-pu"}, fourSeats, tenMinuteLegs())
	require.Error(t, err)
}

func TestInsertStopReportsMissedTimeWindow(t *testing.T) {
	pu := passengerStop("b-pu", domain.StopTypePickup, oneSeat)
	pu.TimeWindows = []domain.TimeWindow{{MaxStartTime: ptr(domain.NewTimeOfDay(8, 0))}}

	next, err := InsertStop(tripStops("a"), pu, 0, fourSeats, tenMinuteLegs())
	require.NoError(t, err)

	assert.Equal(t, []string{"b-pu", "a-pu", "a-do"}, stopIDs(next.Stops))
	assert.False(t, next.WithinTimeWindows())
	require.Len(t, next.Violations, 1)
	assert.Equal(t, "b-pu", next.Violations[0].StopID)
	assert.Contains(t, next.Violations[0].Reasons[0], "max_start_time")
}

func TestReorderStopsReportsMissedTimeWindow(t *testing.T) {
	stops := append(tripStops("a"), tripStops("b")...)
	bDo := stops[3].(domain.PassengerStop)
	bDo.TimeWindows = []domain.TimeWindow{{MaxEndTime: ptr(domain.NewTimeOfDay(9, 40))}}
	stops[3] = bDo

	// b-do arrives 09:55 when it runs last, 09:25 when it runs second.
	late, err := ReorderStops(stops, []string{"a-pu", "b-pu", "a-do", "b-do"}, fourSeats, tenMinuteLegs())
	require.NoError(t, err)
	require.Len(t, late.Violations, 1)
	assert.Equal(t, 3, late.Violations[0].StopIndex)

	early, err := ReorderStops(stops, []string{"b-pu", "b-do", "a-pu", "a-do"}, fourSeats, tenMinuteLegs())
	require.NoError(t, err)
	assert.True(t, early.WithinTimeWindows())
}

func TestProjectArrivalsAndTimeWindows(t *testing.T) {
	stops := tripStops("a")
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	arrivals, err := ProjectArrivals(start, stops, []time.Duration{10 * time.Minute, 15 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{start.Add(10 * time.Minute), start.Add(30 * time.Minute)}, arrivals)

	pu := stops[0].(domain.PassengerStop)
	pu.TimeWindows = []domain.TimeWindow{
		{MaxStartTime: ptr(domain.NewTimeOfDay(9, 0))},
		{MinStartTime: ptr(domain.NewTimeOfDay(9, 5)), MaxStartTime: ptr(domain.NewTimeOfDay(9, 15))},
	}
	do := stops[1].(domain.PassengerStop)
	do.TimeWindows = []domain.TimeWindow{{MaxEndTime: ptr(domain.NewTimeOfDay(9, 30))}}

	violations, err := CheckTimeWindows([]domain.Stop{pu, do}, arrivals)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, 1, violations[0].StopIndex)
	assert.Equal(t, "a-do", violations[0].StopID)
	assert.Len(t, violations[0].Reasons, 1)

	_, err = ProjectArrivals(start, stops, []time.Duration{time.Minute})
	require.Error(t, err)
	_, err = ProjectArrivals(start, stops, []time.Duration{time.Minute, -time.Minute})
	require.Error(t, err)
}

func TestCheckTimeWindowsNoWindowsAlwaysFits(t *testing.T) {
	stops := tripStops("a")
	midnight := time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)

	violations, err := CheckTimeWindows(stops, []time.Time{midnight, midnight})
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func stopIDs(stops []domain.Stop) []string {
	out := make([]string, 0, len(stops))
	for _, s := range stops {
		out = append(out, s.StopID())
	}
	return out
}
