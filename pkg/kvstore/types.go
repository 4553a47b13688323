package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when the store is not configured for the
	// current environment or could not be reached. Callers treat it as
	// "analytics absent" and carry on.
	ErrUnavailable = errors.New("key-value store unavailable")

	// ErrNotFound is returned by Get when the key does not exist or has
	// expired on a reachable store.
	ErrNotFound = errors.New("key not found")
)

// Backend defines the raw key-value store operations. Keys are used as
// given; namespacing is applied by Client.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// IncrBy atomically adds amount to the integer at key and returns the
	// new value. A missing key counts as 0. The ttl is applied when the key
	// has no expiry yet, so repeated increments never extend it.
	IncrBy(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)

	// Scan returns every live key starting with prefix, in no particular order.
	Scan(ctx context.Context, prefix string) ([]string, error)

	// RaiseTo atomically stores value at key if the current integer value is
	// lower (a missing key counts as 0). It reports whether the value was
	// raised. The ttl is reset on every raise.
	RaiseTo(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error)

	// AppendEvent adds member at time at to the time-ordered collection at
	// key, then drops members older than at-retention and the oldest members
	// beyond maxLen. The key expires retention after the last append.
	AppendEvent(ctx context.Context, key string, at time.Time, member string, retention time.Duration, maxLen int) error

	// RangeEvents returns the members of the collection at key with a time
	// in [from, to], oldest first.
	RangeEvents(ctx context.Context, key string, from, to time.Time) ([]Event, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// Event is a member of a time-ordered collection.
type Event struct {
	// At is the event time, millisecond precision.
	At time.Time

	// Member is the opaque event payload.
	Member string
}

// Observer receives the outcome of every client operation.
type Observer interface {
	ObserveStoreOperation(op, result string, duration time.Duration)
}

// Operation results reported to the Observer.
const (
	ResultOK          = "ok"
	ResultNotFound    = "not_found"
	ResultUnavailable = "unavailable"
	ResultSkipped     = "skipped"
)
