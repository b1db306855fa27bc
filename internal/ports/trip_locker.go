package ports

import "context"

// TripLocker serializes mutations of a single trip and its execution.
// Lock waits for the trip until ctx is done, then gives up with domain.ErrLockHeld.
type TripLocker interface {
	Lock(ctx context.Context, tripID string) (unlock func(), err error)
}
