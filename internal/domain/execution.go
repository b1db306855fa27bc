package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type LiveStatus string

const (
	LiveDispatched       LiveStatus = "dispatched"
	LiveEnRouteToPickup  LiveStatus = "en_route_to_pickup"
	LiveWaitingAtPickup  LiveStatus = "waiting_at_pickup"
	LiveTransporting     LiveStatus = "transporting"
	LiveWaitingAtDropoff LiveStatus = "waiting_at_dropoff"
	LiveCompleted        LiveStatus = "completed"
	LiveAborted          LiveStatus = "aborted"
)

// Position of each driver-reported status in the forward sequence.
var liveOrder = map[LiveStatus]int{
	LiveDispatched:       0,
	LiveEnRouteToPickup:  1,
	LiveWaitingAtPickup:  2,
	LiveTransporting:     3,
	LiveWaitingAtDropoff: 4,
}

func (s LiveStatus) IsTerminal() bool {
	return s == LiveCompleted || s == LiveAborted
}

type OnTimeStatus string

const (
	OnTimeEarly  OnTimeStatus = "early"
	OnTimeOnTime OnTimeStatus = "on_time"
	OnTimeLate   OnTimeStatus = "late"
)

// DeriveOnTimeStatus compares an actual arrival to the planned one.
// Arrivals within grace of the plan on either side count as on time.
func DeriveOnTimeStatus(planned, actual time.Time, grace time.Duration) OnTimeStatus {
	switch {
	case actual.Before(planned.Add(-grace)):
		return OnTimeEarly
	case actual.After(planned.Add(grace)):
		return OnTimeLate
	default:
		return OnTimeOnTime
	}
}

type StopOutcome string

const (
	OutcomeCompletedAsPlanned   StopOutcome = "completed_as_planned"
	OutcomeCompletedWithChanges StopOutcome = "completed_with_changes"
	OutcomeNoShow               StopOutcome = "no_show"
	OutcomeVoided               StopOutcome = "voided"
)

func (o StopOutcome) Valid() bool {
	switch o {
	case OutcomeCompletedAsPlanned, OutcomeCompletedWithChanges, OutcomeNoShow, OutcomeVoided:
		return true
	}
	return false
}

// Completed outcomes are the ones billing may treat as a served stop.
func (o StopOutcome) Completed() bool {
	return o == OutcomeCompletedAsPlanned || o == OutcomeCompletedWithChanges
}

type ReconciliationMethod string

const (
	MethodSignature      ReconciliationMethod = "signature"
	MethodPhoto          ReconciliationMethod = "photo"
	MethodScan           ReconciliationMethod = "scan"
	MethodAdministrative ReconciliationMethod = "administrative"
)

type ScanType string

const (
	ScanQRCode  ScanType = "qr_code"
	ScanBarcode ScanType = "barcode"
	ScanNFCTag  ScanType = "nfc_tag"
)

type ScannedData struct {
	Type  ScanType `json:"type"`
	Value string   `json:"value"`
}

type HandOffRecipientType string

const (
	HandOffStaff    HandOffRecipientType = "staff"
	HandOffGuardian HandOffRecipientType = "guardian"
	HandOffOther    HandOffRecipientType = "other"
)

// Person the passenger was handed to at a dropoff.
type HandOffRecipient struct {
	Type HandOffRecipientType `json:"type"`
	Name string               `json:"name"`
}

// Verified record of what happened at a stop. Entries are never edited;
// a correction is a new entry whose Supersedes names the entry it replaces.
type StopReconciliation struct {
	ID                  string               `json:"id"`
	StopID              string               `json:"stop_id"`
	Outcome             StopOutcome          `json:"outcome"`
	ActualCapacityDelta CapacityRequirements `json:"actual_capacity_delta"`
	Timestamp           time.Time            `json:"timestamp"`
	VerifiedBy          string               `json:"verified_by"`
	VerificationMethod  ReconciliationMethod `json:"verification_method"`
	PhotoURL            string               `json:"photo_url,omitempty"`
	SignatureData       string               `json:"signature_data,omitempty"`
	ScannedData         *ScannedData         `json:"scanned_data,omitempty"`
	HandOffRecipient    *HandOffRecipient    `json:"hand_off_recipient,omitempty"`
	DriverNotes         string               `json:"driver_notes,omitempty"`
	Supersedes          string               `json:"supersedes,omitempty"`
	AmendmentReason     string               `json:"amendment_reason,omitempty"`
}

// Validate checks required fields and that the evidence matches the verification method.
func (r StopReconciliation) Validate() error {
	if strings.TrimSpace(r.StopID) == "" {
		return invalidf("reconciliation: stop id is required")
	}
	if !r.Outcome.Valid() {
		return invalidf("reconciliation: unknown outcome %q", r.Outcome)
	}
	if strings.TrimSpace(r.VerifiedBy) == "" {
		return invalidf("reconciliation: verified_by is required")
	}
	if r.Timestamp.IsZero() {
		return invalidf("reconciliation: timestamp is required")
	}

	hasPhoto := r.PhotoURL != ""
	hasSignature := r.SignatureData != ""
	hasScan := r.ScannedData != nil && r.ScannedData.Value != ""

	switch r.VerificationMethod {
	case MethodPhoto:
		if !hasPhoto || hasSignature || hasScan {
			return invalidf("reconciliation: photo verification requires photo_url as the only evidence")
		}
	case MethodSignature:
		if !hasSignature || hasPhoto || hasScan {
			return invalidf("reconciliation: signature verification requires signature_data as the only evidence")
		}
	case MethodScan:
		if !hasScan || hasPhoto || hasSignature {
			return invalidf("reconciliation: scan verification requires scanned_data as the only evidence")
		}
	case MethodAdministrative:
	default:
		return invalidf("reconciliation: unknown verification method %q", r.VerificationMethod)
	}

	return nil
}

// sameSubmission reports whether r is a retry of an already accepted entry.
func (r StopReconciliation) sameSubmission(o StopReconciliation) bool {
	return r.StopID == o.StopID && r.Outcome == o.Outcome && r.ActualCapacityDelta == o.ActualCapacityDelta
}

// The single authoritative execution record of a Trip.
type TripExecution struct {
	ID              string               `json:"id"`
	TenantID        string               `json:"tenant_id"`
	TripID          string               `json:"trip_id"`
	RouteID         string               `json:"route_id"`
	LiveStatus      LiveStatus           `json:"live_status"`
	OnTimeStatus    *OnTimeStatus        `json:"on_time_status,omitempty"`
	ApproachRoute   *DirectionsData      `json:"approach_route,omitempty"`
	LiveRoute       *DirectionsData      `json:"live_route,omitempty"`
	ActualStartTime *time.Time           `json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time           `json:"actual_end_time,omitempty"`
	Reconciliations []StopReconciliation `json:"reconciliations"`
	Incidents       []Incident           `json:"incidents"`
	AuditLog        []AuditEntry         `json:"audit_log"`
	Version         int64                `json:"version"`
}

func NewTripExecution(id string, trip *Trip, startedAt time.Time) (*TripExecution, error) {
	if trip.Assignment == nil {
		return nil, fmt.Errorf("new trip execution: trip %s has no route assignment", trip.ID)
	}

	return &TripExecution{
		ID:              id,
		TenantID:        trip.TenantID,
		TripID:          trip.ID,
		RouteID:         trip.Assignment.RouteID,
		LiveStatus:      LiveDispatched,
		ActualStartTime: &startedAt,
		Reconciliations: []StopReconciliation{},
		Incidents:       []Incident{},
		AuditLog:        []AuditEntry{},
	}, nil
}

// Clone returns a copy that shares no mutable state with e.
func (e *TripExecution) Clone() *TripExecution {
	c := *e
	c.OnTimeStatus = clonePtr(e.OnTimeStatus)
	c.ApproachRoute = e.ApproachRoute.Clone()
	c.LiveRoute = e.LiveRoute.Clone()
	c.ActualStartTime = clonePtr(e.ActualStartTime)
	c.ActualEndTime = clonePtr(e.ActualEndTime)
	c.AuditLog = slices.Clone(e.AuditLog)

	if e.Reconciliations != nil {
		c.Reconciliations = make([]StopReconciliation, len(e.Reconciliations))
		for i, r := range e.Reconciliations {
			r.ScannedData = clonePtr(r.ScannedData)
			r.HandOffRecipient = clonePtr(r.HandOffRecipient)
			c.Reconciliations[i] = r
		}
	}
	if e.Incidents != nil {
		c.Incidents = make([]Incident, len(e.Incidents))
		for i, inc := range e.Incidents {
			c.Incidents[i] = inc.Clone()
		}
	}
	return &c
}

func (e *TripExecution) invalid(to LiveStatus, reason string) error {
	return &InvalidTransition{Entity: "live status", From: string(e.LiveStatus), To: string(to), Reason: reason}
}

// Advance moves the live status forward. Statuses may be skipped but never
// repeated or reversed; terminal statuses are reached through Complete and Abort.
func (e *TripExecution) Advance(to LiveStatus) error {
	if e.LiveStatus.IsTerminal() {
		return e.invalid(to, "execution has ended")
	}

	next, ok := liveOrder[to]
	if !ok {
		return e.invalid(to, "not a driver-reported progress status")
	}

	if next <= liveOrder[e.LiveStatus] {
		return e.invalid(to, "live status only moves forward")
	}

	e.LiveStatus = to
	return nil
}

// RecordArrival sets the advisory on-time status.
func (e *TripExecution) RecordArrival(planned, actual time.Time, grace time.Duration) {
	s := DeriveOnTimeStatus(planned, actual, grace)
	e.OnTimeStatus = &s
}

// Effective returns the entry currently in force for a stop: the latest one
// appended for it, since every later entry supersedes the earlier one.
func (e *TripExecution) Effective(stopID string) (StopReconciliation, bool) {
	for i := len(e.Reconciliations) - 1; i >= 0; i-- {
		if e.Reconciliations[i].StopID == stopID {
			return e.Reconciliations[i], true
		}
	}
	return StopReconciliation{}, false
}

// Record appends a reconciliation for a stop that has none. Any submission
// for an already reconciled stop is a DuplicateReconciliation and the ledger
// is left untouched.
func (e *TripExecution) Record(r StopReconciliation) (StopReconciliation, error) {
	if existing, ok := e.Effective(r.StopID); ok {
		return StopReconciliation{}, &DuplicateReconciliation{
			StopID:     r.StopID,
			Existing:   existing.Outcome,
			ExistingID: existing.ID,
			Retry:      existing.sameSubmission(r),
		}
	}

	if e.LiveStatus.IsTerminal() {
		return StopReconciliation{}, e.invalid(e.LiveStatus, "execution has ended")
	}

	if r.Supersedes != "" || r.AmendmentReason != "" {
		return StopReconciliation{}, invalidf("record reconciliation: amendments must use Amend")
	}

	if err := r.Validate(); err != nil {
		return StopReconciliation{}, err
	}

	e.Reconciliations = append(e.Reconciliations, r)
	return r, nil
}

// Amend appends r as a correction of the stop's effective entry. The earlier
// entry stays in the ledger unchanged.
func (e *TripExecution) Amend(r StopReconciliation, reason string) (StopReconciliation, error) {
	existing, ok := e.Effective(r.StopID)
	if !ok {
		return StopReconciliation{}, fmt.Errorf("amend reconciliation: stop %s: %w", r.StopID, ErrNotFound)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return StopReconciliation{}, invalidf("amend reconciliation: amendment reason is required")
	}

	r.Supersedes = existing.ID
	r.AmendmentReason = reason
	if err := r.Validate(); err != nil {
		return StopReconciliation{}, err
	}

	action := AuditAmendReconciliation
	if r.Outcome == OutcomeVoided {
		action = AuditVoidReconciliation
	}

	e.Reconciliations = append(e.Reconciliations, r)
	e.AuditLog = append(e.AuditLog, AuditEntry{
		Action:     action,
		EntityType: auditEntityReconciliation,
		EntityID:   r.ID,
		Actor:      r.VerifiedBy,
		Timestamp:  r.Timestamp,
		Changes:    fmt.Sprintf("stop %s: %s (%s) -> %s", r.StopID, existing.Outcome, existing.ID, r.Outcome),
		Notes:      reason,
	})
	return r, nil
}

// VoidOpen supersedes every effective non-void entry with a voided entry.
// Used when an in-progress trip is canceled. newID supplies entry ids.
func (e *TripExecution) VoidOpen(newID func() string, actor, reason string, at time.Time) ([]StopReconciliation, error) {
	var stopIDs []string
	for _, r := range e.Reconciliations {
		if !slices.Contains(stopIDs, r.StopID) {
			stopIDs = append(stopIDs, r.StopID)
		}
	}

	voided := make([]StopReconciliation, 0, len(stopIDs))
	for _, id := range stopIDs {
		current, _ := e.Effective(id)
		if current.Outcome == OutcomeVoided {
			continue
		}

		v, err := e.Amend(StopReconciliation{
			ID:                 newID(),
			StopID:             id,
			Outcome:            OutcomeVoided,
			Timestamp:          at,
			VerifiedBy:         actor,
			VerificationMethod: MethodAdministrative,
		}, reason)
		if err != nil {
			return nil, fmt.Errorf("void reconciliations: %w", err)
		}
		voided = append(voided, v)
	}

	return voided, nil
}

// Complete ends the execution successfully. The vehicle must be waiting at the
// dropoff and every listed stop must have a completed reconciliation.
func (e *TripExecution) Complete(stopIDs []string, at time.Time) error {
	if e.LiveStatus != LiveWaitingAtDropoff {
		return e.invalid(LiveCompleted, "vehicle is not waiting at dropoff")
	}

	for _, id := range stopIDs {
		r, ok := e.Effective(id)
		if !ok {
			return e.invalid(LiveCompleted, fmt.Sprintf("stop %s is not reconciled", id))
		}
		if !r.Outcome.Completed() {
			return e.invalid(LiveCompleted, fmt.Sprintf("stop %s reconciled as %s", id, r.Outcome))
		}
	}

	e.LiveStatus = LiveCompleted
	e.ActualEndTime = &at
	return nil
}

// Abort ends the progression early, e.g. after a no-show.
func (e *TripExecution) Abort(at time.Time) error {
	if e.LiveStatus.IsTerminal() {
		return e.invalid(LiveAborted, "execution has ended")
	}
	e.LiveStatus = LiveAborted
	e.ActualEndTime = &at
	return nil
}

// PassengersOnBoard lists passengers whose pickup among stops is reconciled
// as completed and whose dropoff is not.
func (e *TripExecution) PassengersOnBoard(stops []PassengerStop) []string {
	var out []string
	for _, s := range stops {
		if s.Type != StopTypePickup {
			continue
		}
		if r, ok := e.Effective(s.ID); !ok || !r.Outcome.Completed() {
			continue
		}
		if slices.Contains(out, s.PassengerID) {
			continue
		}
		out = append(out, s.PassengerID)
	}

	for _, s := range stops {
		if s.Type != StopTypeDropoff {
			continue
		}
		if r, ok := e.Effective(s.ID); ok && r.Outcome.Completed() {
			out = slices.DeleteFunc(out, func(id string) bool { return id == s.PassengerID })
		}
	}

	return out
}

// ReportIncident adds an incident to a running execution.
func (e *TripExecution) ReportIncident(inc Incident) (Incident, error) {
	if e.LiveStatus.IsTerminal() {
		return Incident{}, e.invalid(e.LiveStatus, "execution has ended")
	}
	for _, existing := range e.Incidents {
		if existing.ID == inc.ID {
			return Incident{}, invalidf("report incident: duplicate incident id %s", inc.ID)
		}
	}

	inc.Status = IncidentReported
	inc.ResolutionNotes = ""
	inc.ResolvedAt = nil
	if inc.PassengerIDsOnBoard == nil {
		inc.PassengerIDsOnBoard = []string{}
	}
	if err := inc.Validate(); err != nil {
		return Incident{}, err
	}

	e.Incidents = append(e.Incidents, inc.Clone())
	e.AuditLog = append(e.AuditLog, AuditEntry{
		Action:     AuditReportIncident,
		EntityType: auditEntityIncident,
		EntityID:   inc.ID,
		Actor:      inc.ReportedBy,
		Timestamp:  inc.ReportedAt,
		Changes:    string(inc.Type),
		Notes:      inc.Description,
	})
	return inc, nil
}

// ResolveIncident closes a reported incident. Resolution is accepted after
// the execution has ended.
func (e *TripExecution) ResolveIncident(id, actor, notes string, actions []string, at time.Time) (Incident, error) {
	if strings.TrimSpace(actor) == "" {
		return Incident{}, invalidf("resolve incident: actor is required")
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return Incident{}, invalidf("resolve incident: resolution notes are required")
	}

	for i := range e.Incidents {
		inc := &e.Incidents[i]
		if inc.ID != id {
			continue
		}
		if inc.Status == IncidentResolved {
			return Incident{}, &InvalidTransition{
				Entity: "incident", From: string(inc.Status), To: string(IncidentResolved),
				Reason: "incident is already resolved",
			}
		}

		inc.Status = IncidentResolved
		inc.ResolutionNotes = notes
		inc.ActionsTaken = append(inc.ActionsTaken, actions...)
		inc.ResolvedAt = &at

		e.AuditLog = append(e.AuditLog, AuditEntry{
			Action:     AuditResolveIncident,
			EntityType: auditEntityIncident,
			EntityID:   id,
			Actor:      actor,
			Timestamp:  at,
			Changes:    fmt.Sprintf("%s -> %s", IncidentReported, IncidentResolved),
			Notes:      notes,
		})
		return inc.Clone(), nil
	}

	return Incident{}, fmt.Errorf("resolve incident %s: %w", id, ErrNotFound)
}
