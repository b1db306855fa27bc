package domain

import (
	"slices"
	"strings"
	"time"
)

type IncidentType string

const (
	IncidentVehicleAccident           IncidentType = "vehicle_accident"
	IncidentVehicleBreakdown          IncidentType = "vehicle_breakdown"
	IncidentPassengerMedicalEmergency IncidentType = "passenger_medical_emergency"
	IncidentDriverMedicalEmergency    IncidentType = "driver_medical_emergency"
	IncidentSafetyConcern             IncidentType = "safety_concern"
	IncidentServiceDelay              IncidentType = "service_delay"
)

func (t IncidentType) Valid() bool {
	switch t {
	case IncidentVehicleAccident, IncidentVehicleBreakdown, IncidentPassengerMedicalEmergency,
		IncidentDriverMedicalEmergency, IncidentSafetyConcern, IncidentServiceDelay:
		return true
	}
	return false
}

type IncidentStatus string

const (
	IncidentReported IncidentStatus = "reported"
	IncidentResolved IncidentStatus = "resolved"
)

// Something that went wrong while a trip was being executed.
type Incident struct {
	ID                  string         `json:"id"`
	Type                IncidentType   `json:"type"`
	Status              IncidentStatus `json:"status"`
	ReportedAt          time.Time      `json:"reported_at"`
	ReportedBy          string         `json:"reported_by"`
	Location            GpsLocation    `json:"location"`
	DriverID            string         `json:"driver_id"`
	VehicleID           string         `json:"vehicle_id"`
	RouteID             string         `json:"route_id"`
	ActiveStopID        string         `json:"active_stop_id,omitempty"`
	PassengerIDsOnBoard []string       `json:"passenger_ids_on_board"`
	Description         string         `json:"description"`
	ActionsTaken        []string       `json:"actions_taken,omitempty"`
	ResolutionNotes     string         `json:"resolution_notes,omitempty"`
	ResolvedAt          *time.Time     `json:"resolved_at,omitempty"`
}

func (i Incident) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return invalidf("incident: id is required")
	}
	if !i.Type.Valid() {
		return invalidf("incident: unknown type %q", i.Type)
	}
	if strings.TrimSpace(i.ReportedBy) == "" {
		return invalidf("incident: reported_by is required")
	}
	if strings.TrimSpace(i.Description) == "" {
		return invalidf("incident: description is required")
	}
	if i.ReportedAt.IsZero() {
		return invalidf("incident: reported_at is required")
	}
	return nil
}

func (i Incident) Clone() Incident {
	i.PassengerIDsOnBoard = slices.Clone(i.PassengerIDsOnBoard)
	i.ActionsTaken = slices.Clone(i.ActionsTaken)
	i.ResolvedAt = clonePtr(i.ResolvedAt)
	return i
}

type AuditAction string

const (
	AuditAmendReconciliation AuditAction = "amend_reconciliation"
	AuditVoidReconciliation  AuditAction = "void_reconciliation"
	AuditReportIncident      AuditAction = "report_incident"
	AuditResolveIncident     AuditAction = "resolve_incident"
)

// One line of an execution's audit trail. Entries are only appended.
type AuditEntry struct {
	Action     AuditAction `json:"action"`
	EntityType string      `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Actor      string      `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Changes    string      `json:"changes,omitempty"`
	Notes      string      `json:"notes,omitempty"`
}

const (
	auditEntityReconciliation = "stop_reconciliation"
	auditEntityIncident       = "incident"
)
