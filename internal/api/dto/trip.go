package dto

import (
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/services"
	"time"
)

type CreateTripRequest struct {
	ID                   string                      `json:"id"`
	PassengerID          string                      `json:"passenger_id"`
	FundingSourceID      string                      `json:"funding_source_id"`
	PickupType           domain.PickupType           `json:"pickup_type"`
	CapacityRequirements domain.CapacityRequirements `json:"capacity_requirements"`
	Constraints          *domain.TripConstraints     `json:"constraints"`
	Stops                []domain.PassengerStop      `json:"stops"`
	PostTripDirective    *domain.PostTripDirective   `json:"post_trip_directive"`
	ExternalIds          *domain.TripExternalIds     `json:"external_ids"`
}

type ListTripsResponse struct {
	Trips []*domain.Trip `json:"trips"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type CancelRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// RouteStops is the full stop sequence of the route the trip joins; it may be
// omitted to validate the trip's own stops alone.
type ScheduleRequest struct {
	Assignment domain.Assignment `json:"assignment"`
	RouteStops domain.StopList   `json:"route_stops"`
}

type ReplaceStopsRequest struct {
	Stops []domain.PassengerStop `json:"stops"`
}

type EvaluateRequest struct {
	Candidates []domain.Candidate `json:"candidates"`
}

type EvaluateResponse struct {
	Evaluations []services.Evaluation `json:"evaluations"`
}

// LegDuration is the drive time assumed between consecutive stops when the
// route carries an estimated start time.
type ProposeRequest struct {
	Route       domain.Route       `json:"route"`
	Candidates  []domain.Candidate `json:"candidates"`
	LegDuration time.Duration      `json:"leg_duration"`
}

type WaypointsRequest struct {
	Waypoints []domain.GpsLocation `json:"waypoints"`
}

type ErrorResponse struct {
	Error    string                    `json:"error"`
	Failures []domain.FailedConstraint `json:"failures,omitempty"`
}
