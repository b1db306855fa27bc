package locks

import (
	"context"
	"fmt"
	"nemt-trip-service/internal/domain"
	"sync"
)

// MemoryLocker is a per-trip mutex table for a single server process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]chan struct{})}
}

func (l *MemoryLocker) Lock(ctx context.Context, tripID string) (func(), error) {
	for {
		l.mu.Lock()
		released, busy := l.held[tripID]
		if !busy {
			ch := make(chan struct{})
			l.held[tripID] = ch
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, tripID)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return nil, fmt.Errorf("lock trip %s: %w", tripID, domain.ErrLockHeld)
		}
	}
}
