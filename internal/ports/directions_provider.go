package ports

import (
	"context"
	"nemt-trip-service/internal/domain"
)

// Contract for retrieving a drivable path through an ordered list of points.
type DirectionsProvider interface {
	// Return the encoded path, distance and duration visiting waypoints in order.
	GetDirections(ctx context.Context, waypoints []domain.GpsLocation) (domain.DirectionsData, error)
}
