package dto

import (
	"nemt-trip-service/internal/domain"
	"time"
)

type AdvanceRequest struct {
	LiveStatus domain.LiveStatus `json:"live_status"`
}

type ArrivalRequest struct {
	PlannedAt time.Time `json:"planned_at"`
	ActualAt  time.Time `json:"actual_at"`
}

type AmendRequest struct {
	Reconciliation domain.StopReconciliation `json:"reconciliation"`
	Reason         string                    `json:"reason"`
}

// Retry is set when the submission repeated an entry that was already accepted.
type ReconciliationResponse struct {
	Reconciliation domain.StopReconciliation `json:"reconciliation"`
	Retry          bool                      `json:"retry,omitempty"`
}

type ListReconciliationsResponse struct {
	Reconciliations []domain.StopReconciliation `json:"reconciliations"`
}

type DuplicateReconciliationResponse struct {
	Error           string             `json:"error"`
	StopID          string             `json:"stop_id"`
	ExistingID      string             `json:"existing_id"`
	ExistingOutcome domain.StopOutcome `json:"existing_outcome"`
}

// Driver, vehicle, route and, when omitted, passengers on board are filled
// in from the trip.
type ReportIncidentRequest struct {
	Incident domain.Incident `json:"incident"`
}

type ResolveIncidentRequest struct {
	Actor           string   `json:"actor"`
	ResolutionNotes string   `json:"resolution_notes"`
	ActionsTaken    []string `json:"actions_taken"`
}
