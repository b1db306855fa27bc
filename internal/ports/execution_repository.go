package ports

import (
	"context"
	"nemt-trip-service/internal/domain"
)

// Port: storage for the single TripExecution of each trip.
// Save follows the same version contract as TripRepository.Save.
type ExecutionRepository interface {
	GetByTrip(ctx context.Context, tenantID, tripID string) (*domain.TripExecution, error)
	Create(ctx context.Context, exec *domain.TripExecution) error
	Save(ctx context.Context, exec *domain.TripExecution) error
}

// Read-only view used by billing. Entries come back in ledger order.
type ReconciliationReader interface {
	ListReconciliations(ctx context.Context, tenantID, tripID string) ([]domain.StopReconciliation, error)
}
