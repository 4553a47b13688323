package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryBackend_Expiry(t *testing.T) {
	clock := newFakeClock()
	b := NewMemoryBackendWithConfig(MemoryBackendConfig{Now: clock.Now})
	defer b.Close()

	testExpiry(t, b, clock)

	if deleted := b.cleanup(); deleted == 0 {
		t.Error("Expected cleanup to drop expired entries")
	}
}

func TestSQLiteBackend_Expiry(t *testing.T) {
	clock := newFakeClock()
	b, err := NewSQLiteBackendWithConfig(SQLiteBackendConfig{
		DBPath: filepath.Join(t.TempDir(), "store.db"),
		Now:    clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	testExpiry(t, b, clock)

	deleted, err := b.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted == 0 {
		t.Error("Expected cleanup to drop expired rows")
	}
}

func TestRedisBackend_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	b := NewRedisBackendFromClient(client)
	ctx := context.Background()

	if _, err := b.IncrBy(ctx, "counter", 1, time.Hour); err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	mr.FastForward(30 * time.Minute)
	if _, err := b.IncrBy(ctx, "counter", 1, time.Hour); err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}

	// Increments never extend the expiry
	if ttl := mr.TTL("counter"); ttl != 30*time.Minute {
		t.Errorf("Expected remaining TTL 30m, got %v", ttl)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := b.Get(ctx, "counter"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected counter to expire, got %v", err)
	}

	if _, err := b.RaiseTo(ctx, "state", 70, time.Hour); err != nil {
		t.Fatalf("RaiseTo failed: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	raised, err := b.RaiseTo(ctx, "state", 70, time.Hour)
	if err != nil {
		t.Fatalf("RaiseTo failed: %v", err)
	}
	if !raised {
		t.Error("Expected raise after the previous state expired")
	}
}

// testExpiry checks TTL semantics for backends with an injectable clock.
func testExpiry(t *testing.T, b Backend, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.IncrBy(ctx, "counter", 1, time.Hour); err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	clock.Advance(30 * time.Minute)
	if _, err := b.IncrBy(ctx, "counter", 1, time.Hour); err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}

	// Still there at 59 minutes: the second increment did not reset the TTL
	clock.Advance(29 * time.Minute)
	if got, err := b.Get(ctx, "counter"); err != nil || got != "2" {
		t.Errorf("Expected counter 2 before expiry, got %q (%v)", got, err)
	}

	clock.Advance(2 * time.Minute)
	if _, err := b.Get(ctx, "counter"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected counter to expire after one hour, got %v", err)
	}

	// An expired counter restarts from zero
	n, err := b.IncrBy(ctx, "counter", 1, time.Hour)
	if err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected restarted counter 1, got %d", n)
	}

	if _, err := b.RaiseTo(ctx, "state", 90, time.Hour); err != nil {
		t.Fatalf("RaiseTo failed: %v", err)
	}
	clock.Advance(2 * time.Hour)
	raised, err := b.RaiseTo(ctx, "state", 70, time.Hour)
	if err != nil {
		t.Fatalf("RaiseTo failed: %v", err)
	}
	if !raised {
		t.Error("Expected raise after the previous state expired")
	}

	if err := b.AppendEvent(ctx, "health:maps", clock.Now(), "a", time.Hour, 10); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	clock.Advance(2 * time.Hour)
	events, err := b.RangeEvents(ctx, "health:maps", clock.Now().Add(-24*time.Hour), clock.Now())
	if err != nil {
		t.Fatalf("RangeEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected expired collection to be empty, got %d events", len(events))
	}
	keys, err := b.Scan(ctx, "")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no live keys, got %v", keys)
	}
}
