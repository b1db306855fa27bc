package handlers

import (
	"errors"
	"nemt-trip-service/internal/api/dto"
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/ports"
	"nemt-trip-service/internal/services"
	"net/http"
)

// ExecutionHandler exposes execution tracking and the reconciliation ledger.
type ExecutionHandler struct {
	Tracker *services.ExecutionTracker
	Trips   ports.TripRepository
	Ledger  ports.ReconciliationReader
}

func respondExecution(w http.ResponseWriter, r *http.Request, status int, exec *domain.TripExecution, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, status, exec)
}

func (h *ExecutionHandler) Start(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	exec, err := h.Tracker.Start(r.Context(), tenantID, tripID(r))
	respondExecution(w, r, http.StatusCreated, exec, err)
}

func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	exec, err := h.Tracker.Get(r.Context(), tenantID, tripID(r))
	respondExecution(w, r, http.StatusOK, exec, err)
}

func (h *ExecutionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.AdvanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	exec, err := h.Tracker.Advance(r.Context(), tenantID, tripID(r), req.LiveStatus)
	respondExecution(w, r, http.StatusOK, exec, err)
}

func (h *ExecutionHandler) RecordArrival(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.ArrivalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PlannedAt.IsZero() || req.ActualAt.IsZero() {
		writeError(w, r, http.StatusBadRequest, "planned_at and actual_at are required")
		return
	}

	exec, err := h.Tracker.RecordArrival(r.Context(), tenantID, tripID(r), req.PlannedAt, req.ActualAt)
	respondExecution(w, r, http.StatusOK, exec, err)
}

// Record appends a reconciliation. Resubmitting an accepted entry answers 200
// with the stored entry; any other second submission for the stop is a 409.
func (h *ExecutionHandler) Record(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req domain.StopReconciliation
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.Tracker.Record(r.Context(), tenantID, tripID(r), req)

	var dup *domain.DuplicateReconciliation
	switch {
	case errors.As(err, &dup) && dup.Retry:
		writeJSON(w, r, http.StatusOK, dto.ReconciliationResponse{Reconciliation: entry, Retry: true})
	case errors.As(err, &dup):
		writeJSON(w, r, http.StatusConflict, dto.DuplicateReconciliationResponse{
			Error:           dup.Error(),
			StopID:          dup.StopID,
			ExistingID:      dup.ExistingID,
			ExistingOutcome: dup.Existing,
		})
	case err != nil:
		writeServiceError(w, r, err)
	default:
		writeJSON(w, r, http.StatusCreated, dto.ReconciliationResponse{Reconciliation: entry})
	}
}

func (h *ExecutionHandler) Amend(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.AmendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.Tracker.Amend(r.Context(), tenantID, tripID(r), req.Reconciliation, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.ReconciliationResponse{Reconciliation: entry})
}

// ListLedger returns every reconciliation of the trip, superseded entries included.
func (h *ExecutionHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	entries, err := h.Ledger.ListReconciliations(r.Context(), tenantID, tripID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ListReconciliationsResponse{Reconciliations: entries})
}

// ListBillable returns the effective reconciliations billing may charge for.
// Only finished trips are billable.
func (h *ExecutionHandler) ListBillable(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	entries, err := services.BillableReconciliations(r.Context(), h.Trips, h.Ledger, tenantID, tripID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ListReconciliationsResponse{Reconciliations: entries})
}

func (h *ExecutionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	exec, err := h.Tracker.Complete(r.Context(), tenantID, tripID(r))
	respondExecution(w, r, http.StatusOK, exec, err)
}

func (h *ExecutionHandler) Fail(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	exec, err := h.Tracker.Fail(r.Context(), tenantID, tripID(r), req.Reason)
	respondExecution(w, r, http.StatusOK, exec, err)
}

func (h *ExecutionHandler) UpdateApproachRoute(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.WaypointsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	exec, err := h.Tracker.UpdateApproachRoute(r.Context(), tenantID, tripID(r), req.Waypoints)
	respondExecution(w, r, http.StatusOK, exec, err)
}

func (h *ExecutionHandler) UpdateLiveRoute(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.WaypointsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	exec, err := h.Tracker.UpdateLiveRoute(r.Context(), tenantID, tripID(r), req.Waypoints)
	respondExecution(w, r, http.StatusOK, exec, err)
}

func (h *ExecutionHandler) ReportIncident(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.ReportIncidentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inc, err := h.Tracker.ReportIncident(r.Context(), tenantID, tripID(r), req.Incident)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, inc)
}

func (h *ExecutionHandler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.ResolveIncidentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inc, err := h.Tracker.ResolveIncident(r.Context(), tenantID, tripID(r), incidentID(r), req.Actor, req.ResolutionNotes, req.ActionsTaken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, inc)
}
