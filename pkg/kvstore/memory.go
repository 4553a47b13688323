package kvstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryBackend implements Backend using in-memory storage.
// It backs the memory:// scheme and tests. All data is lost when the
// process exits.
//
// MemoryBackend is thread-safe and supports concurrent access using sync.RWMutex.
type MemoryBackend struct {
	// values maps keys to scalar entries.
	values map[string]memoryValue

	// events maps keys to time-ordered collections.
	events map[string]*memoryEvents

	// mu protects access to values and events.
	mu sync.RWMutex

	// now returns the current time.
	now func() time.Time

	// cleanupInterval is how often to drop expired entries.
	cleanupInterval time.Duration

	// done signals the cleanup goroutine to stop.
	done      chan struct{}
	closeOnce sync.Once
}

type memoryValue struct {
	value     string
	expiresAt time.Time
}

type memoryEvents struct {
	items     []Event
	expiresAt time.Time
}

// MemoryBackendConfig configures the memory backend.
type MemoryBackendConfig struct {
	// CleanupInterval is how often to drop expired entries.
	// Default: 1 minute
	CleanupInterval time.Duration

	// Now overrides the clock. Default: time.Now
	Now func() time.Time
}

// NewMemoryBackend creates a new in-memory backend with default settings.
func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithConfig(MemoryBackendConfig{})
}

// NewMemoryBackendWithConfig creates a new in-memory backend with custom configuration.
func NewMemoryBackendWithConfig(cfg MemoryBackendConfig) *MemoryBackend {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	backend := &MemoryBackend{
		values:          make(map[string]memoryValue),
		events:          make(map[string]*memoryEvents),
		now:             cfg.Now,
		cleanupInterval: cfg.CleanupInterval,
		done:            make(chan struct{}),
	}

	go backend.cleanupLoop()

	return backend
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Get returns the value stored at key.
func (m *MemoryBackend) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok || expired(v.expiresAt, m.now()) {
		return "", ErrNotFound
	}
	return v.value, nil
}

// Set stores value at key.
func (m *MemoryBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = memoryValue{value: value, expiresAt: expiry(m.now(), ttl)}
	return nil
}

// IncrBy atomically adds amount to the integer at key.
func (m *MemoryBackend) IncrBy(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.values[key]
	if !ok || expired(v.expiresAt, now) {
		v = memoryValue{value: "0"}
	}

	current, err := strconv.ParseInt(v.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value at %q is not an integer", key)
	}
	current += amount

	v.value = strconv.FormatInt(current, 10)
	if v.expiresAt.IsZero() {
		v.expiresAt = expiry(now, ttl)
	}
	m.values[key] = v
	return current, nil
}

// Scan returns every live key starting with prefix.
func (m *MemoryBackend) Scan(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var keys []string
	for key, v := range m.values {
		if strings.HasPrefix(key, prefix) && !expired(v.expiresAt, now) {
			keys = append(keys, key)
		}
	}
	for key, e := range m.events {
		if strings.HasPrefix(key, prefix) && !expired(e.expiresAt, now) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// RaiseTo stores value at key if the current value is lower.
func (m *MemoryBackend) RaiseTo(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if v, ok := m.values[key]; ok && !expired(v.expiresAt, now) {
		current, err := strconv.ParseInt(v.value, 10, 64)
		if err != nil {
			return false, fmt.Errorf("value at %q is not an integer", key)
		}
		if current >= value {
			return false, nil
		}
	}

	m.values[key] = memoryValue{value: strconv.FormatInt(value, 10), expiresAt: expiry(now, ttl)}
	return true, nil
}

// AppendEvent adds member to the time-ordered collection at key.
func (m *MemoryBackend) AppendEvent(ctx context.Context, key string, at time.Time, member string, retention time.Duration, maxLen int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.events[key]
	if !ok || expired(e.expiresAt, now) {
		e = &memoryEvents{}
		m.events[key] = e
	}

	event := Event{At: at.Truncate(time.Millisecond), Member: member}
	i := sort.Search(len(e.items), func(i int) bool { return !eventLess(e.items[i], event) })
	if i < len(e.items) && e.items[i].At.Equal(event.At) && e.items[i].Member == member {
		return nil
	}
	e.items = append(e.items, Event{})
	copy(e.items[i+1:], e.items[i:])
	e.items[i] = event

	if retention > 0 {
		cutoff := at.Add(-retention)
		drop := sort.Search(len(e.items), func(i int) bool { return !e.items[i].At.Before(cutoff) })
		e.items = e.items[drop:]
	}
	if maxLen > 0 && len(e.items) > maxLen {
		e.items = e.items[len(e.items)-maxLen:]
	}
	e.expiresAt = expiry(now, retention)
	return nil
}

// RangeEvents returns the members of the collection at key within [from, to].
func (m *MemoryBackend) RangeEvents(ctx context.Context, key string, from, to time.Time) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.events[key]
	if !ok || expired(e.expiresAt, m.now()) {
		return nil, nil
	}

	var out []Event
	for _, item := range e.items {
		if item.At.Before(from) || item.At.After(to) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// Ping always succeeds.
func (m *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. Close is idempotent.
func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// Size returns the current number of stored keys, expired ones included.
// This is useful for monitoring and testing.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values) + len(m.events)
}

// cleanup drops expired entries.
func (m *MemoryBackend) cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	deleted := 0
	for key, v := range m.values {
		if expired(v.expiresAt, now) {
			delete(m.values, key)
			deleted++
		}
	}
	for key, e := range m.events {
		if expired(e.expiresAt, now) {
			delete(m.events, key)
			deleted++
		}
	}
	return deleted
}

// cleanupLoop runs periodic cleanup of expired entries.
func (m *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

// eventLess orders events by time, then member, as a sorted set does.
func eventLess(a, b Event) bool {
	if !a.At.Equal(b.At) {
		return a.At.Before(b.At)
	}
	return a.Member < b.Member
}
