// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLockNotAcquired is returned when another holder owns the key.
var ErrLockNotAcquired = errors.New("lock not acquired")

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

var _ Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	cli      RedisClient
	attempts int
	backoff  time.Duration
}

// NewLocker returns a locker that tries attempts times, 50ms apart.
func NewLocker(c RedisClient, attempts int) *RedisLocker {
	if attempts <= 0 {
		attempts = 1
	}
	return &RedisLocker{cli: c, attempts: attempts, backoff: 50 * time.Millisecond}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(l.backoff):
			}
		}
		ok, err := l.cli.SetNX(ctx, key, token, ttl)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return token, nil
		}
		lastErr = nil
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrLockNotAcquired
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.cli.DelIfEquals(ctx, key, token)
	return err
}
