package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when a reconciliation for the same address is already
// running. Overlapping runs are rejected, not interleaved: two concurrent
// reconciliations against one address could produce duplicate accounts or
// double-spent registration fees.
var ErrBusy = errors.New("reconciliation already in progress for this address")

// Lock is the busy-flag guard, keyed by wallet address.
type Lock interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryLock guards within a single process.
type MemoryLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{held: map[string]bool{}}
}

func (l *MemoryLock) Acquire(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *MemoryLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

const defaultLockPrefix = "wrs:reconcile:lock:"

// RedisLock guards across instances. Entries carry a TTL so a crashed run
// cannot wedge an address forever.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisLock(client *redis.Client, ttl time.Duration, prefix string) *RedisLock {
	if prefix == "" {
		prefix = defaultLockPrefix
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLock{client: client, ttl: ttl, prefix: prefix}
}

func (l *RedisLock) Acquire(ctx context.Context, key string) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, 1, l.ttl).Result()
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}
