package locks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/platform/obs"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deletes the key only if it still holds our token, so an expired lease
// never releases a lock someone else has since acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds per-trip leases in Redis so several server replicas
// serialize writes to the same trip. A lease expires after TTL even if the
// holder never releases it.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		prefix: "nemt:trip-lock:",
	}
}

func (l *RedisLocker) Lock(ctx context.Context, tripID string) (_ func(), err error) {
	defer obs.Time(ctx, "locks.redis.Lock")(&err)

	if l.client == nil {
		return nil, errors.New("redis locker: client is nil")
	}

	key := l.prefix + tripID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("lock trip %s: %w", tripID, domain.ErrLockHeld)
			}
			return nil, fmt.Errorf("lock trip %s: %w", tripID, err)
		}
		if ok {
			return l.releaser(ctx, key, token), nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock trip %s: %w", tripID, domain.ErrLockHeld)
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) releaser(ctx context.Context, key, token string) func() {
	logger := obs.FromContext(ctx)
	return func() {
		// The request context may already be canceled when the lock is released.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
			obs.LogError(logger, "release trip lock failed", err, slog.String("key", key))
		}
	}
}
