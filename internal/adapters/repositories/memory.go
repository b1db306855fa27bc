package repositories

import (
	"context"
	"fmt"
	"nemt-trip-service/internal/domain"
	"sort"
	"sync"
)

type tripKey struct{ tenantID, tripID string }

// MemoryStore keeps trips and executions in process memory. It implements
// TripRepository, ExecutionRepository and ReconciliationReader with the same
// version semantics as the Postgres store and is used for tests and local runs.
type MemoryStore struct {
	mu         sync.RWMutex
	trips      map[tripKey]*domain.Trip
	executions map[tripKey]*domain.TripExecution
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:      make(map[tripKey]*domain.Trip),
		executions: make(map[tripKey]*domain.TripExecution),
	}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, tripID string) (*domain.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trips[tripKey{tenantID, tripID}]
	if !ok {
		return nil, fmt.Errorf("trip %s: %w", tripID, domain.ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, tenantID string, status domain.TripStatus) ([]*domain.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Trip, 0)
	for k, t := range s.trips {
		if k.tenantID != tenantID || (status != "" && t.Status != status) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Create(ctx context.Context, trip *domain.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := tripKey{trip.TenantID, trip.ID}
	if _, ok := s.trips[k]; ok {
		return fmt.Errorf("create trip: trip %s already exists", trip.ID)
	}
	trip.Version = 1
	s.trips[k] = trip.Clone()
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, trip *domain.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := tripKey{trip.TenantID, trip.ID}
	cur, ok := s.trips[k]
	if !ok {
		return fmt.Errorf("save trip %s: %w", trip.ID, domain.ErrNotFound)
	}
	if cur.Version != trip.Version {
		return fmt.Errorf("save trip %s: stored v%d, have v%d: %w", trip.ID, cur.Version, trip.Version, domain.ErrVersionConflict)
	}
	trip.Version++
	s.trips[k] = trip.Clone()
	return nil
}

// Executions returns a view of the store that satisfies ExecutionRepository.
func (s *MemoryStore) Executions() *MemoryExecutions {
	return &MemoryExecutions{s: s}
}

type MemoryExecutions struct{ s *MemoryStore }

func (m *MemoryExecutions) GetByTrip(ctx context.Context, tenantID, tripID string) (*domain.TripExecution, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	e, ok := m.s.executions[tripKey{tenantID, tripID}]
	if !ok {
		return nil, fmt.Errorf("execution for trip %s: %w", tripID, domain.ErrNotFound)
	}
	return e.Clone(), nil
}

func (m *MemoryExecutions) Create(ctx context.Context, exec *domain.TripExecution) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	k := tripKey{exec.TenantID, exec.TripID}
	if _, ok := m.s.executions[k]; ok {
		return fmt.Errorf("create execution: trip %s already has one", exec.TripID)
	}
	exec.Version = 1
	m.s.executions[k] = exec.Clone()
	return nil
}

func (m *MemoryExecutions) Save(ctx context.Context, exec *domain.TripExecution) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	k := tripKey{exec.TenantID, exec.TripID}
	cur, ok := m.s.executions[k]
	if !ok {
		return fmt.Errorf("save execution %s: %w", exec.ID, domain.ErrNotFound)
	}
	if cur.Version != exec.Version {
		return fmt.Errorf("save execution %s: stored v%d, have v%d: %w", exec.ID, cur.Version, exec.Version, domain.ErrVersionConflict)
	}
	if len(exec.Reconciliations) < len(cur.Reconciliations) {
		return fmt.Errorf("save execution %s: reconciliation ledger cannot shrink", exec.ID)
	}
	exec.Version++
	m.s.executions[k] = exec.Clone()
	return nil
}

func (m *MemoryExecutions) ListReconciliations(ctx context.Context, tenantID, tripID string) ([]domain.StopReconciliation, error) {
	e, err := m.GetByTrip(ctx, tenantID, tripID)
	if err != nil {
		return nil, err
	}
	return e.Reconciliations, nil
}
