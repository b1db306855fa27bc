package services

import (
	"context"
	"fmt"
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/ports"
)

// EffectiveReconciliations returns the entry in force for each stop, in the
// order stops were first reconciled. Superseded entries are skipped.
func EffectiveReconciliations(ledger []domain.StopReconciliation) []domain.StopReconciliation {
	order := make([]string, 0, len(ledger))
	latest := make(map[string]domain.StopReconciliation, len(ledger))
	for _, r := range ledger {
		if _, ok := latest[r.StopID]; !ok {
			order = append(order, r.StopID)
		}
		latest[r.StopID] = r
	}

	out := make([]domain.StopReconciliation, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out
}

// BillableReconciliations reads a finished trip's ledger and keeps the
// effective entries whose outcome counts as a served stop. A trip that is
// still open returns ErrTripNotFinished.
func BillableReconciliations(
	ctx context.Context,
	trips ports.TripRepository,
	reader ports.ReconciliationReader,
	tenantID, tripID string,
) ([]domain.StopReconciliation, error) {
	trip, err := trips.Get(ctx, tenantID, tripID)
	if err != nil {
		return nil, fmt.Errorf("billable reconciliations for trip %s: %w", tripID, err)
	}
	if !trip.Status.IsTerminal() {
		return nil, fmt.Errorf("billable reconciliations for trip %s: trip is %s: %w", tripID, trip.Status, domain.ErrTripNotFinished)
	}

	ledger, err := reader.ListReconciliations(ctx, tenantID, tripID)
	if err != nil {
		return nil, fmt.Errorf("billable reconciliations for trip %s: %w", tripID, err)
	}

	out := make([]domain.StopReconciliation, 0, len(ledger))
	for _, r := range EffectiveReconciliations(ledger) {
		if r.Outcome.Completed() {
			out = append(out, r)
		}
	}
	return out, nil
}
