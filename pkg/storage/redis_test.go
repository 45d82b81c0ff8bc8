//go:build integration

package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupRedisContainer starts a Redis container for testing
func setupRedisContainer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
		redis.WithSnapshotting(10, 1),
		redis.WithLogLevel(redis.LogLevelVerbose),
	)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	endpoint, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return strings.TrimPrefix(endpoint, "redis://")
}

func newTestRedisStore(t *testing.T, addr string, ttl time.Duration) *RedisStore {
	t.Helper()
	store, err := NewRedisStore(addr, "", 0, ttl)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStore_Contract(t *testing.T) {
	addr := setupRedisContainer(t)

	runStoreContract(t, func(t *testing.T) Store {
		store := newTestRedisStore(t, addr, 0)
		if err := store.Clear(context.Background()); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		return store
	})
}

func TestRedisStore_NewRedisStore_InvalidParams(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		db      int
		ttl     time.Duration
		wantMsg string
	}{
		{name: "empty addr", addr: "", wantMsg: "redis address cannot be empty"},
		{name: "negative db", addr: "localhost:6379", db: -1, wantMsg: "redis database number must be >= 0"},
		{name: "negative ttl", addr: "localhost:6379", ttl: -time.Second, wantMsg: "redis ttl must be >= 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisStore(tt.addr, "", tt.db, tt.ttl)
			if err == nil || err.Error() != tt.wantMsg {
				t.Errorf("NewRedisStore() error = %v, want %q", err, tt.wantMsg)
			}
		})
	}
}

func TestRedisStore_NewRedisStore_InvalidAddr(t *testing.T) {
	if _, err := NewRedisStore("invalid:99999", "", 0, 0); err == nil {
		t.Fatal("expected error for invalid address, got nil")
	}
}

func TestRedisStore_ValuesAreCompressed(t *testing.T) {
	addr := setupRedisContainer(t)
	store := newTestRedisStore(t, addr, 0)
	ctx := context.Background()

	payload := []byte(`{"hourly":{"time":[` + strings.Repeat(`"2024-01-01T00:00",`, 500) + `"2024-01-01T01:00"]}}`)
	if err := store.Put(ctx, "0p0000_0p0000_hourly_2024-01", payload); err != nil {
		t.Fatal(err)
	}

	raw, err := store.client.Get(ctx, KeyPrefix+"0p0000_0p0000_hourly_2024-01").Bytes()
	if err != nil {
		t.Fatalf("raw GET failed: %v", err)
	}
	if len(raw) >= len(payload) {
		t.Errorf("stored value is %d bytes, payload %d; expected compression", len(raw), len(payload))
	}

	got, _, err := store.Get(ctx, "0p0000_0p0000_hourly_2024-01")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Error("decompressed payload differs from original")
	}
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	addr := setupRedisContainer(t)
	store := newTestRedisStore(t, addr, 1*time.Second)
	ctx := context.Background()

	if err := store.Put(ctx, "0p0000_0p0000_daily_2024-01", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Second)

	_, found, err := store.Get(ctx, "0p0000_0p0000_daily_2024-01")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected partition to expire")
	}
}

func TestRedisStore_Close_Idempotent(t *testing.T) {
	addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 0)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.Close(); err != nil {
			t.Errorf("Close #%d failed: %v", i+1, err)
		}
	}

	if err := store.Ping(context.Background()); err == nil {
		t.Error("Ping after Close should fail")
	}
}
