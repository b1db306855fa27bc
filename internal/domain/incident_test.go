package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func breakdown(id string) Incident {
	return Incident{
		ID:          id,
		Type:        IncidentVehicleBreakdown,
		ReportedAt:  testNow,
		ReportedBy:  "driver-1",
		Location:    GpsLocation{Latitude: 41.8781, Longitude: -87.6298},
		Description: "flat tire",
	}
}

func TestReportIncident(t *testing.T) {
	_, exec := startedExecution(t)

	inc, err := exec.ReportIncident(breakdown("inc-1"))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if inc.Status != IncidentReported {
		t.Fatalf("status = %s, want %s", inc.Status, IncidentReported)
	}
	if len(exec.Incidents) != 1 || len(exec.AuditLog) != 1 {
		t.Fatalf("incidents=%d audit=%d, want 1 and 1", len(exec.Incidents), len(exec.AuditLog))
	}
	if got := exec.AuditLog[0]; got.Action != AuditReportIncident || got.EntityID != "inc-1" {
		t.Fatalf("audit entry = %+v", got)
	}

	if _, err := exec.ReportIncident(breakdown("inc-1")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("duplicate id: expected ErrInvalid, got %v", err)
	}

	bad := breakdown("inc-2")
	bad.Description = " "
	if _, err := exec.ReportIncident(bad); !errors.Is(err, ErrInvalid) {
		t.Fatalf("missing description: expected ErrInvalid, got %v", err)
	}

	_ = exec.Abort(testNow)
	var it *InvalidTransition
	if _, err := exec.ReportIncident(breakdown("inc-3")); !errors.As(err, &it) {
		t.Fatalf("report after abort: expected InvalidTransition, got %v", err)
	}
}

func TestResolveIncident(t *testing.T) {
	_, exec := startedExecution(t)
	if _, err := exec.ReportIncident(breakdown("inc-1")); err != nil {
		t.Fatalf("report: %v", err)
	}
	_ = exec.Abort(testNow)

	at := testNow.Add(2 * time.Hour)
	inc, err := exec.ResolveIncident("inc-1", "dispatcher", "towed", []string{"notified dispatch"}, at)
	if err != nil {
		t.Fatalf("resolve after abort: %v", err)
	}
	if inc.Status != IncidentResolved || inc.ResolvedAt == nil || !inc.ResolvedAt.Equal(at) {
		t.Fatalf("resolved incident = %+v", inc)
	}
	if !reflect.DeepEqual(inc.ActionsTaken, []string{"notified dispatch"}) {
		t.Fatalf("actions = %v", inc.ActionsTaken)
	}
	if last := exec.AuditLog[len(exec.AuditLog)-1]; last.Action != AuditResolveIncident || last.Actor != "dispatcher" {
		t.Fatalf("audit entry = %+v", last)
	}

	var it *InvalidTransition
	if _, err := exec.ResolveIncident("inc-1", "dispatcher", "again", nil, at); !errors.As(err, &it) {
		t.Fatalf("second resolve: expected InvalidTransition, got %v", err)
	}
	if _, err := exec.ResolveIncident("nope", "dispatcher", "x", nil, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown incident: expected ErrNotFound, got %v", err)
	}
	if _, err := exec.ResolveIncident("inc-1", "dispatcher", "", nil, at); !errors.Is(err, ErrInvalid) {
		t.Fatalf("empty notes: expected ErrInvalid, got %v", err)
	}
}

func TestAmendAndVoidAreAudited(t *testing.T) {
	_, exec := startedExecution(t)
	seat := CapacityRequirements{AmbulatorySeats: 1}

	if _, err := exec.Record(signed("r1", "stop-1", OutcomeCompletedAsPlanned, seat)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(exec.AuditLog) != 0 {
		t.Fatalf("plain record was audited: %+v", exec.AuditLog)
	}

	if _, err := exec.Amend(signed("r2", "stop-1", OutcomeCompletedWithChanges, seat), "wrong door"); err != nil {
		t.Fatalf("amend: %v", err)
	}
	if _, err := exec.VoidOpen(func() string { return "void-1" }, "dispatcher", "canceled", testNow); err != nil {
		t.Fatalf("void: %v", err)
	}

	if len(exec.AuditLog) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(exec.AuditLog))
	}
	amend, void := exec.AuditLog[0], exec.AuditLog[1]
	if amend.Action != AuditAmendReconciliation || amend.EntityID != "r2" || amend.Notes != "wrong door" {
		t.Fatalf("amend audit = %+v", amend)
	}
	if void.Action != AuditVoidReconciliation || void.Actor != "dispatcher" || void.Notes != "canceled" {
		t.Fatalf("void audit = %+v", void)
	}
}

func TestPassengersOnBoard(t *testing.T) {
	trip, exec := startedExecution(t)
	seat := CapacityRequirements{AmbulatorySeats: 1}

	if got := exec.PassengersOnBoard(trip.Stops); len(got) != 0 {
		t.Fatalf("before pickup: %v", got)
	}

	_, _ = exec.Record(signed("r1", "stop-1", OutcomeCompletedAsPlanned, seat))
	if got := exec.PassengersOnBoard(trip.Stops); !reflect.DeepEqual(got, []string{"passenger-1"}) {
		t.Fatalf("after pickup: %v", got)
	}

	_, _ = exec.Record(signed("r2", "stop-2", OutcomeCompletedAsPlanned, seat.Negate()))
	if got := exec.PassengersOnBoard(trip.Stops); len(got) != 0 {
		t.Fatalf("after dropoff: %v", got)
	}
}

func TestExecutionCloneSharesNothing(t *testing.T) {
	_, exec := startedExecution(t)
	_, _ = exec.ReportIncident(breakdown("inc-1"))

	c := exec.Clone()
	c.Incidents[0].Description = "changed"
	*c.ActualStartTime = testNow.Add(time.Hour)
	c.AuditLog[0].Notes = "changed"

	if exec.Incidents[0].Description != "flat tire" || !exec.ActualStartTime.Equal(testNow) || exec.AuditLog[0].Notes != "flat tire" {
		t.Fatalf("clone shares state with original")
	}
}
