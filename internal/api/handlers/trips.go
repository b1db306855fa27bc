package handlers

import (
	"nemt-trip-service/internal/api/dto"
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/services"
	"net/http"
)

// TripHandler exposes the trip lifecycle and candidate evaluation.
type TripHandler struct {
	Lifecycle *services.TripLifecycle
	Evaluator *services.ConstraintEvaluator
}

func (h *TripHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.CreateTripRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pickup := req.PickupType
	if pickup == "" {
		pickup = domain.PickupScheduled
	}

	trip := &domain.Trip{
		ID:                   req.ID,
		TenantID:             tenantID,
		PassengerID:          req.PassengerID,
		FundingSourceID:      req.FundingSourceID,
		PickupType:           pickup,
		CapacityRequirements: req.CapacityRequirements,
		Constraints:          req.Constraints,
		Stops:                req.Stops,
		PostTripDirective:    req.PostTripDirective,
		ExternalIds:          req.ExternalIds,
	}
	if err := h.Lifecycle.Create(r.Context(), trip); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, trip)
}

func (h *TripHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	status := domain.TripStatus(r.URL.Query().Get("status"))
	trips, err := h.Lifecycle.List(r.Context(), tenantID, status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ListTripsResponse{Trips: trips})
}

func (h *TripHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	trip, err := h.Lifecycle.Get(r.Context(), tenantID, tripID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, trip)
}

// respond writes the trip returned by a lifecycle call, or its error.
func respond(w http.ResponseWriter, r *http.Request, trip *domain.Trip, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, trip)
}

func (h *TripHandler) Approve(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	trip, err := h.Lifecycle.Approve(r.Context(), tenantID, tripID(r))
	respond(w, r, trip, err)
}

func (h *TripHandler) Reject(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	trip, err := h.Lifecycle.Reject(r.Context(), tenantID, tripID(r), req.Reason)
	respond(w, r, trip, err)
}

func (h *TripHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.ScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	trip, err := h.Lifecycle.Schedule(r.Context(), tenantID, tripID(r), req.Assignment, req.RouteStops)
	respond(w, r, trip, err)
}

func (h *TripHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.CancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Actor == "" {
		writeError(w, r, http.StatusBadRequest, "actor is required")
		return
	}

	trip, err := h.Lifecycle.Cancel(r.Context(), tenantID, tripID(r), req.Actor, req.Reason)
	respond(w, r, trip, err)
}

func (h *TripHandler) ReplaceStops(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.ReplaceStopsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	trip, err := h.Lifecycle.ReplaceStops(r.Context(), tenantID, tripID(r), req.Stops)
	respond(w, r, trip, err)
}

func (h *TripHandler) AttachPlannedRoute(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.WaypointsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	trip, err := h.Lifecycle.AttachPlannedRoute(r.Context(), tenantID, tripID(r), req.Waypoints)
	respond(w, r, trip, err)
}

// Evaluate ranks driver+vehicle candidates against the trip's constraints.
// Inadmissible candidates are returned too, with every failed constraint.
func (h *TripHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.EvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	trip, err := h.Lifecycle.Get(r.Context(), tenantID, tripID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	ranked, err := h.Evaluator.RankCandidates(r.Context(), trip.Constraints, req.Candidates)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.EvaluateResponse{Evaluations: ranked})
}

func (h *TripHandler) Propose(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.ProposeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	trip, err := h.Lifecycle.Get(r.Context(), tenantID, tripID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	proposal, err := services.ProposeAssignment(r.Context(), h.Evaluator, trip, req.Route, req.Candidates, services.FixedLeg(req.LegDuration))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, proposal)
}
