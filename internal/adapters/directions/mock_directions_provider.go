package directions

import (
	"context"
	"fmt"
	"nemt-trip-service/internal/domain"
	"sync"
)

// MockDirectionsProvider answers with straight lines between waypoints.
// Each leg costs the configured meters and seconds.
type MockDirectionsProvider struct {
	LegMeters  int
	LegSeconds int

	mu    sync.Mutex
	calls int
}

func NewMockDirectionsProvider(legMeters, legSeconds int) *MockDirectionsProvider {
	return &MockDirectionsProvider{LegMeters: legMeters, LegSeconds: legSeconds}
}

func (p *MockDirectionsProvider) GetDirections(ctx context.Context, waypoints []domain.GpsLocation) (domain.DirectionsData, error) {
	if err := validateWaypoints(waypoints); err != nil {
		return domain.DirectionsData{}, fmt.Errorf("mock directions: %w", err)
	}

	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	path := make([][]float64, 0, len(waypoints))
	for _, w := range waypoints {
		path = append(path, []float64{w.Latitude, w.Longitude})
	}

	legs := len(waypoints) - 1
	return NewDirectionsData(path, float64(legs*p.LegMeters), float64(legs*p.LegSeconds)), nil
}

func (p *MockDirectionsProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
