package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("business lock not acquired")
)

// Locker guards the reservation critical section per business. Reservations
// on different businesses never contend with each other.
type Locker interface {
	WithBusinessLock(ctx context.Context, businessID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisBusinessLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewRedisBusinessLocker creates a locker backed by a per-business Redis key.
// Acquisition polls SetNX until wait elapses, then gives up with
// ErrLockNotAcquired so the caller can surface a retryable busy error
// instead of blocking forever.
func NewRedisBusinessLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisBusinessLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		poll:   25 * time.Millisecond,
	}
}

func (l *redisBusinessLocker) WithBusinessLock(ctx context.Context, businessID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:business:%s", businessID.String())
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire business lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.poll):
		}
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisBusinessLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release business lock: %w", err)
	}
	return nil
}
