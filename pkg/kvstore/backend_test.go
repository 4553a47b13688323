package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// backendFactories returns one constructor per backend implementation.
func backendFactories() map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend {
			b := NewMemoryBackend()
			t.Cleanup(func() { b.Close() })
			return b
		},
		"sqlite": func(t *testing.T) Backend {
			b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "store.db"))
			if err != nil {
				t.Fatalf("failed to create SQLite backend: %v", err)
			}
			t.Cleanup(func() { b.Close() })
			return b
		},
		"redis": func(t *testing.T) Backend {
			mr, client := setupTestRedis(t)
			t.Cleanup(func() {
				client.Close()
				mr.Close()
			})
			return NewRedisBackendFromClient(client)
		},
	}
}

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})

	return mr, client
}

func forEachBackend(t *testing.T, fn func(t *testing.T, b Backend)) {
	factories := backendFactories()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			fn(t, factories[name](t))
		})
	}
}

func TestBackend_GetMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		_, err := b.Get(context.Background(), "absent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestBackend_SetAndGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()

		if err := b.Set(ctx, "alert-state:maps:2026-10", "70", time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := b.Get(ctx, "alert-state:maps:2026-10")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != "70" {
			t.Errorf("Expected 70, got %q", got)
		}

		if err := b.Set(ctx, "alert-state:maps:2026-10", "90", 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, _ = b.Get(ctx, "alert-state:maps:2026-10")
		if got != "90" {
			t.Errorf("Expected overwrite to 90, got %q", got)
		}
	})
}

func TestBackend_IncrBy(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()

		for i := int64(1); i <= 3; i++ {
			n, err := b.IncrBy(ctx, "usage:maps:/geocode:2026-10-18", 1, time.Hour)
			if err != nil {
				t.Fatalf("IncrBy failed: %v", err)
			}
			if n != i {
				t.Errorf("Expected %d, got %d", i, n)
			}
		}

		n, err := b.IncrBy(ctx, "usage:maps:/geocode:2026-10-18", 5, time.Hour)
		if err != nil {
			t.Fatalf("IncrBy failed: %v", err)
		}
		if n != 8 {
			t.Errorf("Expected 8, got %d", n)
		}

		got, err := b.Get(ctx, "usage:maps:/geocode:2026-10-18")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != "8" {
			t.Errorf("Expected stored value 8, got %q", got)
		}
	})
}

func TestBackend_IncrByConcurrent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		const n = 50

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := b.IncrBy(ctx, "counter", 1, time.Hour); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Fatalf("IncrBy failed: %v", err)
		}

		got, err := b.Get(ctx, "counter")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != fmt.Sprint(n) {
			t.Errorf("Expected %d, got %s", n, got)
		}
	})
}

func TestBackend_Scan(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()

		for _, key := range []string{
			"preview:1:usage:maps:/a:2026-10-18",
			"preview:1:usage:maps:/b:2026-10-18",
			"preview:2:usage:maps:/a:2026-10-18",
			"usage:maps:/a:2026-10-18",
		} {
			if _, err := b.IncrBy(ctx, key, 1, time.Hour); err != nil {
				t.Fatalf("IncrBy failed: %v", err)
			}
		}
		if err := b.AppendEvent(ctx, "preview:1:health:maps", time.Now(), "m", time.Hour, 10); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}

		keys, err := b.Scan(ctx, "preview:1:")
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		sort.Strings(keys)

		want := []string{
			"preview:1:health:maps",
			"preview:1:usage:maps:/a:2026-10-18",
			"preview:1:usage:maps:/b:2026-10-18",
		}
		if fmt.Sprint(keys) != fmt.Sprint(want) {
			t.Errorf("Expected %v, got %v", want, keys)
		}
	})
}

func TestBackend_RaiseTo(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()

		steps := []struct {
			value      int64
			wantRaised bool
			wantStored string
		}{
			{70, true, "70"},
			{70, false, "70"},
			{90, true, "90"},
			{70, false, "90"},
			{90, false, "90"},
		}

		for i, step := range steps {
			raised, err := b.RaiseTo(ctx, "alert-state:maps:2026-10", step.value, time.Hour)
			if err != nil {
				t.Fatalf("step %d: RaiseTo failed: %v", i, err)
			}
			if raised != step.wantRaised {
				t.Errorf("step %d: Expected raised=%v, got %v", i, step.wantRaised, raised)
			}
			got, _ := b.Get(ctx, "alert-state:maps:2026-10")
			if got != step.wantStored {
				t.Errorf("step %d: Expected stored %s, got %s", i, step.wantStored, got)
			}
		}
	})
}

func TestBackend_RaiseToConcurrent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		const n = 20

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			raised int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := b.RaiseTo(ctx, "alert-state:maps:2026-10", 70, time.Hour)
				if err != nil {
					t.Errorf("RaiseTo failed: %v", err)
					return
				}
				if ok {
					mu.Lock()
					raised++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if raised != 1 {
			t.Errorf("Expected exactly one raiser, got %d", raised)
		}
	})
}

func TestBackend_Events(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

		for i := 0; i < 5; i++ {
			at := base.Add(time.Duration(i) * time.Hour)
			if err := b.AppendEvent(ctx, "health:maps", at, fmt.Sprintf("r%d", i), 7*24*time.Hour, 100); err != nil {
				t.Fatalf("AppendEvent failed: %v", err)
			}
		}

		events, err := b.RangeEvents(ctx, "health:maps", base.Add(time.Hour), base.Add(3*time.Hour))
		if err != nil {
			t.Fatalf("RangeEvents failed: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("Expected 3 events in window, got %d", len(events))
		}
		for i, e := range events {
			want := fmt.Sprintf("r%d", i+1)
			if e.Member != want {
				t.Errorf("Expected member %s at %d, got %s", want, i, e.Member)
			}
			if !e.At.Equal(base.Add(time.Duration(i+1) * time.Hour)) {
				t.Errorf("Expected time %v, got %v", base.Add(time.Duration(i+1)*time.Hour), e.At)
			}
		}

		missing, err := b.RangeEvents(ctx, "health:absent", base, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("RangeEvents failed: %v", err)
		}
		if len(missing) != 0 {
			t.Errorf("Expected no events for missing key, got %d", len(missing))
		}
	})
}

func TestBackend_EventsTrimmedOnWrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		retention := 7 * 24 * time.Hour

		// One record per day for ten days: the first three fall out of retention
		for i := 0; i < 10; i++ {
			at := base.Add(time.Duration(i) * 24 * time.Hour)
			if err := b.AppendEvent(ctx, "health:maps", at, fmt.Sprintf("day%02d", i), retention, 100); err != nil {
				t.Fatalf("AppendEvent failed: %v", err)
			}
		}

		all, err := b.RangeEvents(ctx, "health:maps", base.Add(-time.Hour), base.Add(30*24*time.Hour))
		if err != nil {
			t.Fatalf("RangeEvents failed: %v", err)
		}
		if len(all) != 8 {
			t.Fatalf("Expected 8 events after age trim, got %d", len(all))
		}
		if all[0].Member != "day02" {
			t.Errorf("Expected oldest surviving event day02, got %s", all[0].Member)
		}

		// Cap at three entries
		last := base.Add(9*24*time.Hour + time.Hour)
		if err := b.AppendEvent(ctx, "health:maps", last, "capped", retention, 3); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
		all, err = b.RangeEvents(ctx, "health:maps", base, last)
		if err != nil {
			t.Fatalf("RangeEvents failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("Expected 3 events after cap, got %d", len(all))
		}
		if all[2].Member != "capped" || all[0].Member != "day08" {
			t.Errorf("Expected newest entries kept, got %v", all)
		}
	})
}
