package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrRequestInProgress means another request with the same key is running.
var ErrRequestInProgress = errors.New("request with this idempotency key is in progress")

// StoredResponse is a completed HTTP outcome kept for replay.
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// IdempotencyStore remembers responses by client-supplied key so a retried
// request is answered without charging again.
type IdempotencyStore struct {
	cli     RedisClient
	locker  Locker
	ttl     time.Duration
	lockTTL time.Duration
}

func NewIdempotencyStore(cli RedisClient, ttl, lockTTL time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &IdempotencyStore{cli: cli, locker: NewLocker(cli, 1), ttl: ttl, lockTTL: lockTTL}
}

func respKey(scope, key string) string { return fmt.Sprintf("idem:%s:%s:resp", scope, key) }
func lockKey(scope, key string) string { return fmt.Sprintf("idem:%s:%s:lock", scope, key) }

// Lookup returns the stored response, or nil if there is none.
func (s *IdempotencyStore) Lookup(ctx context.Context, scope, key string) (*StoredResponse, error) {
	val, err := s.cli.Get(ctx, respKey(scope, key))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out StoredResponse
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &out, nil
}

// Acquire claims key for one in-flight request.
func (s *IdempotencyStore) Acquire(ctx context.Context, scope, key string) (string, error) {
	token, err := s.locker.TryLock(ctx, lockKey(scope, key), s.lockTTL)
	if errors.Is(err, ErrLockNotAcquired) {
		return "", ErrRequestInProgress
	}
	return token, err
}

// Complete stores resp and releases the claim.
func (s *IdempotencyStore) Complete(ctx context.Context, scope, key, token string, resp StoredResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := s.cli.Set(ctx, respKey(scope, key), b, s.ttl); err != nil {
		return err
	}
	return s.Release(ctx, scope, key, token)
}

// Release drops the claim without storing anything, so the client may retry.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key, token string) error {
	return s.locker.Unlock(ctx, lockKey(scope, key), token)
}
