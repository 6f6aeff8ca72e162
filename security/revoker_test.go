package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRevokerBehaviour(t *testing.T, r Revoker) {
	t.Helper()
	ctx := context.Background()
	cutoff := time.Now()

	revoked, err := r.IsRevoked(ctx, "acct-1", cutoff)
	if err != nil {
		t.Fatalf("check before revocation: %v", err)
	}
	if revoked {
		t.Fatal("token revoked before any revocation")
	}

	if err := r.RevokeAll(ctx, "acct-1", cutoff); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// Issued at or before the cut-off: revoked.
	revoked, err = r.IsRevoked(ctx, "acct-1", cutoff.Add(-time.Minute))
	if err != nil || !revoked {
		t.Fatalf("expected older token revoked: revoked=%v err=%v", revoked, err)
	}
	revoked, err = r.IsRevoked(ctx, "acct-1", cutoff)
	if err != nil || !revoked {
		t.Fatalf("expected cut-off token revoked: revoked=%v err=%v", revoked, err)
	}

	// Issued after the cut-off: still valid.
	revoked, err = r.IsRevoked(ctx, "acct-1", cutoff.Add(time.Minute))
	if err != nil || revoked {
		t.Fatalf("expected newer token valid: revoked=%v err=%v", revoked, err)
	}

	// Other accounts unaffected.
	revoked, err = r.IsRevoked(ctx, "acct-2", cutoff.Add(-time.Minute))
	if err != nil || revoked {
		t.Fatalf("expected other account untouched: revoked=%v err=%v", revoked, err)
	}
}

func TestMemoryRevoker(t *testing.T) {
	testRevokerBehaviour(t, NewMemoryRevoker())
}

func TestRedisRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	testRevokerBehaviour(t, NewRedisRevoker(client, time.Hour, ""))
}
