package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestResultCacheRoundTripAndExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewResultCache(client)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "report:t1:a"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := cache.Put(ctx, "report:t1:a", []byte(`{"score":40}`), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := cache.Get(ctx, "report:t1:a")
	if err != nil || !ok || string(got) != `{"score":40}` {
		t.Fatalf("expected hit, got %s ok=%v err=%v", got, ok, err)
	}
	if ttl := mr.TTL("report:t1:a"); ttl > time.Minute || ttl < 54*time.Second {
		t.Fatalf("expected ttl within jitter window, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "report:t1:a"); ok {
		t.Fatalf("expected key to expire")
	}
}

func TestResultCacheZeroTTLIsNotStored(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewResultCache(client)

	_ = cache.Put(context.Background(), "report:t1:bypass", []byte(`1`), 0)
	if mr.Exists("report:t1:bypass") {
		t.Fatalf("ttl 0 must not persist")
	}
}

func TestResultCacheInvalidatePrefix(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewResultCache(client)
	ctx := context.Background()

	for _, key := range []string{"report:t1:a", "report:t1:b", "report:t2:a", "mirror:t1:u1:current"} {
		if err := mr.Set(key, "1"); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	if err := cache.InvalidatePrefix(ctx, "report:t1:"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("report:t1:a") || mr.Exists("report:t1:b") {
		t.Fatalf("tenant 1 reports should be gone")
	}
	if !mr.Exists("report:t2:a") || !mr.Exists("mirror:t1:u1:current") {
		t.Fatalf("unrelated keys must survive")
	}
}

func TestMirrorStoreSetsAndClearsKeys(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewMirrorStore(client, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, "mirror:t1:u1:current", []byte(`{"score":12}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("mirror:t1:u1:current") {
		t.Fatalf("expected redis key to be set")
	}
	if _, ok, _ := store.Load(ctx, "mirror:t2:u1:current"); ok {
		t.Fatalf("mirror must not leak across tenants")
	}

	if err := store.Clear(ctx, "mirror:t1:u1:current"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("mirror:t1:u1:current") {
		t.Fatalf("expected redis key to be removed")
	}
}
