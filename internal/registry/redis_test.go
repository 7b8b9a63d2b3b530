package registry

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// setupRedis connects to a real redis instance. Gated so the suite passes
// without one: set RECALL_REDIS_TEST_ADDR (e.g. localhost:6379) to enable.
func setupRedis(t *testing.T) *Redis {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis test in -short mode")
	}
	addr := os.Getenv("RECALL_REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("RECALL_REDIS_TEST_ADDR not set - skipping test requiring redis")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis ping failed: %v", err)
	}

	r, err := NewRedis(client, time.Minute)
	if err != nil {
		t.Fatalf("NewRedis() error: %v", err)
	}
	return r
}

func TestRedis_StoreResolveRoundTrip(t *testing.T) {
	r := setupRedis(t)
	ctx := context.Background()
	hits := makeHits(3)

	if err := r.Store(ctx, "chat-1", hits); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	got, err := r.Resolve(ctx, "chat-1", 2)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got.ItemID != hits[1].ItemID {
		t.Errorf("Resolve(2) = %v, want %v", got.ItemID, hits[1].ItemID)
	}
	if got.Source != hits[1].Source {
		t.Errorf("source ref lost in round trip: %+v", got.Source)
	}

	if n, err := r.Count(ctx, "chat-1"); err != nil || n != 3 {
		t.Errorf("Count() = (%d, %v), want (3, nil)", n, err)
	}
}

func TestRedis_ResolveAbsent(t *testing.T) {
	r := setupRedis(t)

	if _, err := r.Resolve(context.Background(), "chat-none", 1); !errors.Is(err, ErrNoSuchRank) {
		t.Errorf("Resolve on absent key = %v, want ErrNoSuchRank", err)
	}
	if n, err := r.Count(context.Background(), "chat-none"); err != nil || n != 0 {
		t.Errorf("Count on absent key = (%d, %v), want (0, nil)", n, err)
	}
}

func TestRedis_FullReplaceAndClear(t *testing.T) {
	r := setupRedis(t)
	ctx := context.Background()

	if err := r.Store(ctx, "chat-1", makeHits(5)); err != nil {
		t.Fatal(err)
	}
	if err := r.Store(ctx, "chat-1", makeHits(2)); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Resolve(ctx, "chat-1", 4); !errors.Is(err, ErrNoSuchRank) {
		t.Errorf("rank 4 after replace = %v, want ErrNoSuchRank", err)
	}

	if err := r.Clear(ctx, "chat-1"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := r.Resolve(ctx, "chat-1", 1); !errors.Is(err, ErrNoSuchRank) {
		t.Errorf("Resolve after Clear = %v, want ErrNoSuchRank", err)
	}
}
