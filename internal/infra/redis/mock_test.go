//go:build !integration

package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// memClient is an in-memory RedisClient. Expiry is recorded but not enforced.
type memClient struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

var _ RedisClient = (*memClient)(nil)

func newMemClient() *memClient {
	return &memClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memClient) Ping(ctx context.Context) error { return nil }

func (m *memClient) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = toString(value)
	m.ttls[key] = exp
	return nil
}

func (m *memClient) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = toString(value)
	m.ttls[key] = exp
	return true, nil
}

func (m *memClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	fmt.Sscan(m.data[key], &n)
	n++
	m.data[key] = fmt.Sprint(n)
	if m.ttls[key] <= 0 {
		m.ttls[key] = window
	}
	return n, nil
}

func (m *memClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memClient) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *memClient) Close() error { return nil }

func toString(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
