package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker invalidates every token issued to an account before a cut-off
// instant. Revoking all tokens is the session-teardown primitive used by the
// reconciler's compensation path.
type Revoker interface {
	RevokeAll(ctx context.Context, accountID string, at time.Time) error
	IsRevoked(ctx context.Context, accountID string, issuedAt time.Time) (bool, error)
}

// MemoryRevoker keeps cut-offs in process memory. Default when no Redis is
// configured; sufficient for a single instance.
type MemoryRevoker struct {
	mu      sync.Mutex
	cutoffs map[string]time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{cutoffs: map[string]time.Time{}}
}

func (r *MemoryRevoker) RevokeAll(_ context.Context, accountID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.cutoffs[accountID]; !ok || at.After(prev) {
		r.cutoffs[accountID] = at
	}
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, accountID string, issuedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff, ok := r.cutoffs[accountID]
	if !ok {
		return false, nil
	}
	return !issuedAt.After(cutoff), nil
}

const defaultRevokerPrefix = "wrs:auth:revoked:"

// RedisRevoker shares cut-offs across instances. Entries expire after the
// token TTL so the denylist does not grow without bound.
type RedisRevoker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisRevoker(client *redis.Client, tokenTTL time.Duration, prefix string) *RedisRevoker {
	if prefix == "" {
		prefix = defaultRevokerPrefix
	}
	return &RedisRevoker{client: client, ttl: tokenTTL, prefix: prefix}
}

func (r *RedisRevoker) RevokeAll(ctx context.Context, accountID string, at time.Time) error {
	key := r.prefix + accountID
	if err := r.client.Set(ctx, key, at.UnixNano(), r.ttl).Err(); err != nil {
		return fmt.Errorf("store revocation: %w", err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, accountID string, issuedAt time.Time) (bool, error) {
	key := r.prefix + accountID
	nanos, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	cutoff := time.Unix(0, nanos)
	return !issuedAt.After(cutoff), nil
}
