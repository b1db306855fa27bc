package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type TripStatus string

const (
	TripPendingApproval TripStatus = "pending_approval"
	TripApproved        TripStatus = "approved"
	TripRejected        TripStatus = "rejected"
	TripScheduled       TripStatus = "scheduled"
	TripInProgress      TripStatus = "in_progress"
	TripCompleted       TripStatus = "completed"
	TripIncomplete      TripStatus = "incomplete"
	TripCanceled        TripStatus = "canceled"
)

// Allowed forward moves of the trip state machine. Terminal states have no entry.
var tripTransitions = map[TripStatus][]TripStatus{
	TripPendingApproval: {TripApproved, TripRejected, TripCanceled},
	TripApproved:        {TripScheduled, TripCanceled},
	TripScheduled:       {TripInProgress, TripCanceled},
	TripInProgress:      {TripCompleted, TripIncomplete, TripCanceled},
}

func (s TripStatus) IsTerminal() bool {
	_, ok := tripTransitions[s]
	return !ok
}

func CanTransitionTrip(from, to TripStatus) bool {
	return slices.Contains(tripTransitions[from], to)
}

type PickupType string

const (
	PickupScheduled PickupType = "scheduled"
	PickupWillCall  PickupType = "will_call"
	PickupASAP      PickupType = "asap"
)

// Instruction for what the vehicle does after the trip, e.g. wait for a return leg.
type PostTripDirective struct {
	Type       string        `json:"type"`
	Duration   time.Duration `json:"duration"`
	NextTripID string        `json:"next_trip_id"`
}

type TripExternalIds struct {
	BrokerTripID string `json:"broker_trip_id,omitempty"`
}

// The route, driver and vehicle a trip was scheduled onto.
type Assignment struct {
	RouteID         string               `json:"route_id"`
	DriverID        string               `json:"driver_id"`
	VehicleID       string               `json:"vehicle_id"`
	VehicleCapacity CapacityRequirements `json:"vehicle_capacity"`
}

// A single passenger journey owned by a tenant.
//
// Stops can only be appended or replaced as a whole so that the net-zero
// capacity rule is re-checked on every change. Version is bumped by the
// repository on every successful save.
type Trip struct {
	ID                   string               `json:"id"`
	TenantID             string               `json:"tenant_id"`
	PassengerID          string               `json:"passenger_id"`
	FundingSourceID      string               `json:"funding_source_id"`
	Status               TripStatus           `json:"status"`
	PickupType           PickupType           `json:"pickup_type"`
	CapacityRequirements CapacityRequirements `json:"capacity_requirements"`
	Constraints          *TripConstraints     `json:"constraints,omitempty"`
	Stops                []PassengerStop      `json:"stops"`
	PlannedRoute         *DirectionsData      `json:"planned_route,omitempty"`
	PostTripDirective    *PostTripDirective   `json:"post_trip_directive,omitempty"`
	ExternalIds          *TripExternalIds     `json:"external_ids,omitempty"`
	Assignment           *Assignment          `json:"assignment,omitempty"`
	RejectionReason      string               `json:"rejection_reason,omitempty"`
	CancellationReason   string               `json:"cancellation_reason,omitempty"`
	IncompleteReason     string               `json:"incomplete_reason,omitempty"`
	Version              int64                `json:"version"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

func NewTrip(id, tenantID, passengerID, fundingSourceID string, stops []PassengerStop) (*Trip, error) {
	t := &Trip{
		ID:              id,
		TenantID:        tenantID,
		PassengerID:     passengerID,
		FundingSourceID: fundingSourceID,
		Status:          TripPendingApproval,
		PickupType:      PickupScheduled,
	}
	if err := t.ReplaceStops(stops); err != nil {
		return nil, fmt.Errorf("new trip %s: %w", id, err)
	}
	return t, nil
}

// Clone returns a deep copy of t.
func (t *Trip) Clone() *Trip {
	c := *t
	if t.Stops != nil {
		c.Stops = make([]PassengerStop, len(t.Stops))
		for i, s := range t.Stops {
			c.Stops[i] = s.Clone()
		}
	}
	c.Constraints = t.Constraints.Clone()
	c.PlannedRoute = t.PlannedRoute.Clone()
	c.PostTripDirective = clonePtr(t.PostTripDirective)
	c.ExternalIds = clonePtr(t.ExternalIds)
	c.Assignment = clonePtr(t.Assignment)
	return &c
}

func (t *Trip) transition(to TripStatus) error {
	if !CanTransitionTrip(t.Status, to) {
		var reason string
		switch {
		case t.Status.IsTerminal():
			reason = "trip is in a terminal state"
		case t.Status == to:
			reason = "trip is already " + string(to)
		}
		return &InvalidTransition{Entity: "trip", From: string(t.Status), To: string(to), Reason: reason}
	}
	t.Status = to
	return nil
}

func (t *Trip) guard(to TripStatus, reason string, cause error) error {
	return &InvalidTransition{Entity: "trip", From: string(t.Status), To: string(to), Reason: reason, Cause: cause}
}

func (t *Trip) Approve() error {
	return t.transition(TripApproved)
}

func (t *Trip) Reject(reason string) error {
	if !CanTransitionTrip(t.Status, TripRejected) {
		return t.transition(TripRejected)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return t.guard(TripRejected, "rejection reason is required", nil)
	}

	t.RejectionReason = reason
	t.Status = TripRejected
	return nil
}

// Schedule moves an approved trip onto a route. routeStops is the full stop
// list of the route the trip joins; when empty, the trip's own stops are
// validated alone against the assigned vehicle. Route entries carrying a trip
// stop id are checked with the trip's stored stop, not the caller's copy.
func (t *Trip) Schedule(a Assignment, routeStops []Stop) error {
	if !CanTransitionTrip(t.Status, TripScheduled) {
		return t.transition(TripScheduled)
	}

	if strings.TrimSpace(a.RouteID) == "" {
		return t.guard(TripScheduled, "route assignment is required", nil)
	}

	if !NetZero(t.Stops) {
		return t.guard(TripScheduled, "trip stops are not net-zero", nil)
	}

	required := t.RequiredCapacity()
	if !required.Fits(a.VehicleCapacity) {
		return t.guard(TripScheduled, fmt.Sprintf(
			"trip requires %s but vehicle provides %s", required, a.VehicleCapacity,
		), nil)
	}

	stops := PassengerStops(t.Stops)
	if len(routeStops) > 0 {
		if missing := t.missingFrom(routeStops); missing != "" {
			return t.guard(TripScheduled, fmt.Sprintf("route does not contain trip stop %s", missing), nil)
		}
		stops = t.withOwnStops(routeStops)
	}

	if err := ValidateCapacity(stops, a.VehicleCapacity); err != nil {
		return t.guard(TripScheduled, "route exceeds vehicle capacity", err)
	}

	t.Assignment = &a
	t.Status = TripScheduled
	return nil
}

// RequiredCapacity is the larger of the declared requirement and the peak
// load the trip's own stops put on board.
func (t *Trip) RequiredCapacity() CapacityRequirements {
	return t.CapacityRequirements.Max(PeakLoad(PassengerStops(t.Stops)))
}

// withOwnStops returns routeStops with every entry that shares an id with a
// trip stop replaced by the trip's stored copy.
func (t *Trip) withOwnStops(routeStops []Stop) []Stop {
	out := make([]Stop, len(routeStops))
	for i, s := range routeStops {
		if own, ok := t.Stop(s.StopID()); ok {
			out[i] = own
			continue
		}
		out[i] = s
	}
	return out
}

func (t *Trip) missingFrom(routeStops []Stop) string {
	ids := make(map[string]struct{}, len(routeStops))
	for _, s := range routeStops {
		ids[s.StopID()] = struct{}{}
	}
	for _, s := range t.Stops {
		if _, ok := ids[s.ID]; !ok {
			return s.ID
		}
	}
	return ""
}

// Start marks the trip as executing. The caller creates the TripExecution.
func (t *Trip) Start() error {
	return t.transition(TripInProgress)
}

func (t *Trip) Complete() error {
	return t.transition(TripCompleted)
}

func (t *Trip) MarkIncomplete(reason string) error {
	if err := t.transition(TripIncomplete); err != nil {
		return err
	}
	t.IncompleteReason = strings.TrimSpace(reason)
	return nil
}

func (t *Trip) Cancel(reason string) error {
	if !CanTransitionTrip(t.Status, TripCanceled) {
		return t.transition(TripCanceled)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return t.guard(TripCanceled, "cancellation reason is required", nil)
	}

	t.CancellationReason = reason
	t.Status = TripCanceled
	return nil
}

// ReplaceStops swaps the whole stop list. The new list must be net-zero and,
// once the trip is scheduled, must still fit the assigned vehicle.
func (t *Trip) ReplaceStops(stops []PassengerStop) error {
	switch t.Status {
	case TripPendingApproval, TripApproved, TripScheduled:
	default:
		return invalidf("replace stops: trip %s is %s", t.ID, t.Status)
	}

	seen := make(map[string]struct{}, len(stops))
	for i, s := range stops {
		if strings.TrimSpace(s.ID) == "" {
			return invalidf("replace stops: stop at index %d has empty id", i)
		}
		if _, ok := seen[s.ID]; ok {
			return invalidf("replace stops: duplicate stop id %s", s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	if !NetZero(stops) {
		return fmt.Errorf("replace stops: %w", ErrNotNetZero)
	}

	if t.Status == TripScheduled && t.Assignment != nil {
		if err := ValidateCapacity(PassengerStops(stops), t.Assignment.VehicleCapacity); err != nil {
			return fmt.Errorf("replace stops: %w", err)
		}
	}

	t.Stops = slices.Clone(stops)
	return nil
}

func (t *Trip) AppendStops(stops ...PassengerStop) error {
	next := make([]PassengerStop, 0, len(t.Stops)+len(stops))
	next = append(next, t.Stops...)
	next = append(next, stops...)
	return t.ReplaceStops(next)
}

func (t *Trip) Stop(id string) (PassengerStop, bool) {
	for _, s := range t.Stops {
		if s.ID == id {
			return s, true
		}
	}
	return PassengerStop{}, false
}
