// Package kvstoretest provides test doubles for kvstore backends.
package kvstoretest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/kvstore"
)

// ErrInjected is the default failure returned by Faulty.
var ErrInjected = errors.New("injected store failure")

// ErrLostAck is returned after a write was applied but its reply dropped.
var ErrLostAck = errors.New("i/o timeout")

// Operation names accepted by Faulty.FailOn.
const (
	OpGet         = "get"
	OpSet         = "set"
	OpIncrBy      = "incr"
	OpScan        = "scan"
	OpRaiseTo     = "raise"
	OpAppendEvent = "append_event"
	OpRangeEvents = "range_events"
	OpPing        = "ping"
)

// Faulty wraps a backend and fails selected operations. The zero value is
// not usable; create one with NewFaulty.
type Faulty struct {
	kvstore.Backend

	mu      sync.Mutex
	down    bool
	failing map[string]error
	keyed   map[string][]keyFailure
	lostAck map[string]int
	calls   map[string]int
}

type keyFailure struct {
	contains string
	err      error
}

// NewFaulty wraps backend. A nil backend uses a fresh MemoryBackend.
func NewFaulty(backend kvstore.Backend) *Faulty {
	if backend == nil {
		backend = kvstore.NewMemoryBackend()
	}
	return &Faulty{
		Backend: backend,
		failing: make(map[string]error),
		keyed:   make(map[string][]keyFailure),
		lostAck: make(map[string]int),
		calls:   make(map[string]int),
	}
}

// SetDown makes every operation fail with ErrInjected while down is true.
func (f *Faulty) SetDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

// FailOn makes op fail with err (ErrInjected when nil) until Reset.
func (f *Faulty) FailOn(op string, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[op] = err
}

// FailOnKey makes op fail with err (ErrInjected when nil) for keys
// containing substr until Reset.
func (f *Faulty) FailOnKey(op, substr string, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyed[op] = append(f.keyed[op], keyFailure{contains: substr, err: err})
}

// LoseAcks makes the next n calls of op reach the wrapped backend and then
// fail with ErrLostAck, as if the reply timed out after the write committed.
func (f *Faulty) LoseAcks(op string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lostAck[op] = n
}

// Reset clears all injected failures.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = false
	f.failing = make(map[string]error)
	f.keyed = make(map[string][]keyFailure)
	f.lostAck = make(map[string]int)
}

// Calls returns how many times op was attempted.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) check(op, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.down {
		return ErrInjected
	}
	for _, kf := range f.keyed[op] {
		if strings.Contains(key, kf.contains) {
			return kf.err
		}
	}
	return f.failing[op]
}

// ack reports the outcome of an operation that already reached the backend.
func (f *Faulty) ack(op string, err error) error {
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lostAck[op] > 0 {
		f.lostAck[op]--
		return ErrLostAck
	}
	return nil
}

func (f *Faulty) Get(ctx context.Context, key string) (string, error) {
	if err := f.check(OpGet, key); err != nil {
		return "", err
	}
	return f.Backend.Get(ctx, key)
}

func (f *Faulty) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := f.check(OpSet, key); err != nil {
		return err
	}
	return f.ack(OpSet, f.Backend.Set(ctx, key, value, ttl))
}

func (f *Faulty) IncrBy(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	if err := f.check(OpIncrBy, key); err != nil {
		return 0, err
	}
	n, err := f.Backend.IncrBy(ctx, key, amount, ttl)
	return n, f.ack(OpIncrBy, err)
}

func (f *Faulty) Scan(ctx context.Context, prefix string) ([]string, error) {
	if err := f.check(OpScan, prefix); err != nil {
		return nil, err
	}
	return f.Backend.Scan(ctx, prefix)
}

func (f *Faulty) RaiseTo(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	if err := f.check(OpRaiseTo, key); err != nil {
		return false, err
	}
	raised, err := f.Backend.RaiseTo(ctx, key, value, ttl)
	if err = f.ack(OpRaiseTo, err); err != nil {
		return false, err
	}
	return raised, nil
}

func (f *Faulty) AppendEvent(ctx context.Context, key string, at time.Time, member string, retention time.Duration, maxLen int) error {
	if err := f.check(OpAppendEvent, key); err != nil {
		return err
	}
	return f.ack(OpAppendEvent, f.Backend.AppendEvent(ctx, key, at, member, retention, maxLen))
}

func (f *Faulty) RangeEvents(ctx context.Context, key string, from, to time.Time) ([]kvstore.Event, error) {
	if err := f.check(OpRangeEvents, key); err != nil {
		return nil, err
	}
	return f.Backend.RangeEvents(ctx, key, from, to)
}

func (f *Faulty) Ping(ctx context.Context) error {
	if err := f.check(OpPing, ""); err != nil {
		return err
	}
	return f.Backend.Ping(ctx)
}

// NewClient returns a test-environment client over backend with retries
// disabled and failure logs discarded.
func NewClient(backend kvstore.Backend, prefix string) *kvstore.Client {
	return newClient(backend, prefix, 0)
}

// NewRetryingClient is NewClient with the single retry production clients use.
func NewRetryingClient(backend kvstore.Backend, prefix string) *kvstore.Client {
	return newClient(backend, prefix, 1)
}

func newClient(backend kvstore.Backend, prefix string, retries int) *kvstore.Client {
	if prefix == "" {
		prefix = "test:unit:"
	}
	env := testEnvironment(prefix)
	c, err := kvstore.NewClient(backend, env, kvstore.Options{
		OperationTimeout: time.Second,
		MaxRetries:       retries,
		Logger:           discardLogger(),
	})
	if err != nil {
		panic(err)
	}
	return c
}
