package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLock(t *testing.T) {
	lock := NewMemoryLock()
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "0xabc")
	if err != nil || !acquired {
		t.Fatalf("first acquire: acquired=%v err=%v", acquired, err)
	}
	acquired, err = lock.Acquire(ctx, "0xabc")
	if err != nil || acquired {
		t.Fatalf("second acquire must be rejected: acquired=%v err=%v", acquired, err)
	}

	// A different address is independent.
	acquired, err = lock.Acquire(ctx, "0xdef")
	if err != nil || !acquired {
		t.Fatalf("other address acquire: acquired=%v err=%v", acquired, err)
	}

	if err := lock.Release(ctx, "0xabc"); err != nil {
		t.Fatalf("release: %v", err)
	}
	acquired, err = lock.Acquire(ctx, "0xabc")
	if err != nil || !acquired {
		t.Fatalf("re-acquire after release: acquired=%v err=%v", acquired, err)
	}
}

func TestRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := NewRedisLock(client, time.Minute, "")
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "0xabc")
	if err != nil || !acquired {
		t.Fatalf("first acquire: acquired=%v err=%v", acquired, err)
	}
	acquired, err = lock.Acquire(ctx, "0xabc")
	if err != nil || acquired {
		t.Fatalf("second acquire must be rejected: acquired=%v err=%v", acquired, err)
	}

	if err := lock.Release(ctx, "0xabc"); err != nil {
		t.Fatalf("release: %v", err)
	}
	acquired, err = lock.Acquire(ctx, "0xabc")
	if err != nil || !acquired {
		t.Fatalf("re-acquire after release: acquired=%v err=%v", acquired, err)
	}
}

func TestRedisLockExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := NewRedisLock(client, time.Second, "")
	ctx := context.Background()

	if acquired, _ := lock.Acquire(ctx, "0xabc"); !acquired {
		t.Fatal("first acquire failed")
	}

	// A crashed holder must not wedge the address forever.
	mr.FastForward(2 * time.Second)

	acquired, err := lock.Acquire(ctx, "0xabc")
	if err != nil || !acquired {
		t.Fatalf("acquire after TTL expiry: acquired=%v err=%v", acquired, err)
	}
}
