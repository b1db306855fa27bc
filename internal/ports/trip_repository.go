package ports

import (
	"context"
	"nemt-trip-service/internal/domain"
)

// Port: a boundary for loading and storing Trip aggregates.
//
// Save is an optimistic write: it succeeds only when the stored version equals
// trip.Version, and bumps trip.Version on success. A stale write returns
// domain.ErrVersionConflict.
type TripRepository interface {
	Get(ctx context.Context, tenantID, tripID string) (*domain.Trip, error)
	List(ctx context.Context, tenantID string, status domain.TripStatus) ([]*domain.Trip, error)
	Create(ctx context.Context, trip *domain.Trip) error
	Save(ctx context.Context, trip *domain.Trip) error
}
