package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/environment"
	"mercator-hq/sentinel/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// Options configures a Client.
type Options struct {
	// OperationTimeout bounds each attempt.
	// Default: 1s
	OperationTimeout time.Duration

	// MaxRetries is 0 or 1. Larger values are capped at 1.
	MaxRetries int

	// ErrorLogInterval is the minimum interval between two logged failures.
	// Default: 1m
	ErrorLogInterval time.Duration

	// Logger receives failure logs. Default: slog.Default()
	Logger *slog.Logger

	// Observer receives the outcome of every operation. Optional.
	Observer Observer
}

// OptionsFromConfig converts the store configuration into client options.
func OptionsFromConfig(cfg config.StoreConfig) Options {
	return Options{
		OperationTimeout: cfg.OperationTimeout,
		MaxRetries:       cfg.RetryCount(),
		ErrorLogInterval: cfg.ErrorLogInterval,
	}
}

// Client is the environment-aware decorator over a Backend. It prepends the
// environment key prefix to every key, strips it from scanned keys, and
// converts every store failure into ErrUnavailable.
//
// When the environment is not available every operation returns
// ErrUnavailable without touching the backend. Client is safe for
// concurrent use.
type Client struct {
	backend   Backend
	env       environment.Context
	available bool
	timeout   time.Duration
	retries   int
	logger    *slog.Logger
	observer  Observer
	limiter   *logLimiter
}

// NewClient creates a Client for env. backend may be nil when env is not
// available. A non-production environment with an empty prefix is rejected:
// its writes would land in the production keyspace.
func NewClient(backend Backend, env environment.Context, opts Options) (*Client, error) {
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to create store client: %w", err)
	}

	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = config.DefaultStoreOperationTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries > 1 {
		opts.MaxRetries = 1
	}
	if opts.ErrorLogInterval <= 0 {
		opts.ErrorLogInterval = config.DefaultStoreErrorLogInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		backend:   backend,
		env:       env,
		available: env.Available && backend != nil,
		timeout:   opts.OperationTimeout,
		retries:   opts.MaxRetries,
		logger:    opts.Logger.With("component", "kvstore", "environment", string(env.Kind)),
		observer:  opts.Observer,
		limiter:   newLogLimiter(opts.ErrorLogInterval),
	}, nil
}

// Connect resolves the backend for env and wraps it in a Client. A backend
// that cannot be opened yields an unavailable Client, never an error, so
// the caller keeps running with analytics absent. Only an invalid
// environment is an error.
func Connect(env environment.Context, cfg config.StoreConfig, opts Options) (*Client, error) {
	var backend Backend
	if env.Available {
		b, err := Open(env.Credentials, cfg)
		if err != nil {
			logger := opts.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("failed to open key-value store, continuing without it",
				"component", "kvstore",
				"store", env.Credentials,
				"error", err)
		} else {
			backend = b
		}
	}
	return NewClient(backend, env, opts)
}

// Unavailable returns a Client on which every operation returns
// ErrUnavailable.
func Unavailable(env environment.Context, logger *slog.Logger) *Client {
	env.Available = false
	c, err := NewClient(nil, env, Options{Logger: logger})
	if err != nil {
		// Only an invalid prefix fails; fall back to an isolated test prefix
		c, _ = NewClient(nil, environment.Context{Kind: environment.KindTest, KeyPrefix: "unavailable:"}, Options{Logger: logger})
	}
	return c
}

// NoRetry returns a view of the client that never retries. It shares the
// backend and the failure log limiter with c.
func (c *Client) NoRetry() *Client {
	view := *c
	view.retries = 0
	return &view
}

// Available reports whether operations reach a store.
func (c *Client) Available() bool {
	return c.available
}

// Environment returns the environment the client is bound to.
func (c *Client) Environment() environment.Context {
	return c.env
}

// Key returns the physical key for a logical key.
func (c *Client) Key(key string) string {
	return c.env.KeyPrefix + key
}

// Get returns the value at key, ErrNotFound, or ErrUnavailable.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := c.do(ctx, "get", func(ctx context.Context) error {
		var err error
		value, err = c.backend.Get(ctx, c.Key(key))
		return err
	})
	return value, err
}

// Set stores value at key. A zero ttl means no expiry.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.do(ctx, "set", func(ctx context.Context) error {
		return c.backend.Set(ctx, c.Key(key), value, ttl)
	})
}

// Increment atomically adds amount to the counter at key and returns the
// new value. The ttl applies when the counter is created.
func (c *Client) Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	var value int64
	err := c.do(ctx, "increment", func(ctx context.Context) error {
		var err error
		value, err = c.backend.IncrBy(ctx, c.Key(key), amount, ttl)
		return err
	})
	return value, err
}

// ScanByPrefix returns the logical keys starting with prefix. The
// environment prefix is stripped from every returned key.
func (c *Client) ScanByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := c.do(ctx, "scan", func(ctx context.Context) error {
		raw, err := c.backend.Scan(ctx, c.Key(prefix))
		if err != nil {
			return err
		}
		keys = make([]string, 0, len(raw))
		for _, k := range raw {
			if logical, ok := strings.CutPrefix(k, c.env.KeyPrefix); ok {
				keys = append(keys, logical)
			}
		}
		return nil
	})
	return keys, err
}

// RaiseTo atomically raises the integer at key to value and reports whether
// this call raised it.
func (c *Client) RaiseTo(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	var raised bool
	err := c.do(ctx, "raise", func(ctx context.Context) error {
		var err error
		raised, err = c.backend.RaiseTo(ctx, c.Key(key), value, ttl)
		return err
	})
	return raised, err
}

// AppendEvent adds member at time at to the capped collection at key.
func (c *Client) AppendEvent(ctx context.Context, key string, at time.Time, member string, retention time.Duration, maxLen int) error {
	return c.do(ctx, "append_event", func(ctx context.Context) error {
		return c.backend.AppendEvent(ctx, c.Key(key), at, member, retention, maxLen)
	})
}

// RangeEvents returns the members of the collection at key within [from, to].
func (c *Client) RangeEvents(ctx context.Context, key string, from, to time.Time) ([]Event, error) {
	var events []Event
	err := c.do(ctx, "range_events", func(ctx context.Context) error {
		var err error
		events, err = c.backend.RangeEvents(ctx, c.Key(key), from, to)
		return err
	})
	return events, err
}

// Ping checks that the store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", func(ctx context.Context) error {
		return c.backend.Ping(ctx)
	})
}

// Close closes the backend.
func (c *Client) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

// do runs op under the per-attempt timeout, retries at most c.retries times,
// and converts failures into ErrUnavailable.
func (c *Client) do(ctx context.Context, name string, op func(context.Context) error) error {
	start := time.Now()

	if !c.available {
		c.observe(name, ResultSkipped, start)
		return ErrUnavailable
	}

	ctx, span := tracing.StartSpan(ctx, "kvstore."+name, tracing.StoreAttributes(name, string(c.env.Kind))...)
	defer span.End()

	var err error
	attempts := 0
	for attempts <= c.retries {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = op(attemptCtx)
		cancel()

		if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			break
		}
	}
	span.SetAttributes(attribute.Int(tracing.AttrRetryCount, attempts-1))

	switch {
	case err == nil:
		c.observe(name, ResultOK, start)
		span.SetAttributes(attribute.String(tracing.AttrStoreResult, ResultOK))
		tracing.SetStatus(span, nil)
		return nil

	case errors.Is(err, ErrNotFound):
		c.observe(name, ResultNotFound, start)
		span.SetAttributes(attribute.String(tracing.AttrStoreResult, ResultNotFound))
		return ErrNotFound

	default:
		c.observe(name, ResultUnavailable, start)
		span.SetAttributes(attribute.String(tracing.AttrStoreResult, ResultUnavailable))
		tracing.SetStatus(span, err)
		if suppressed, ok := c.limiter.allow(time.Now()); ok {
			c.logger.Error("key-value store operation failed",
				"op", name,
				"attempts", attempts,
				"suppressed", suppressed,
				"error", err)
		}
		return fmt.Errorf("kvstore %s: %w: %w", name, ErrUnavailable, err)
	}
}

func (c *Client) observe(op, result string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveStoreOperation(op, result, time.Since(start))
	}
}

// logLimiter lets one failure log through per interval and counts the rest.
type logLimiter struct {
	interval   time.Duration
	last       atomic.Int64
	suppressed atomic.Int64
}

func newLogLimiter(interval time.Duration) *logLimiter {
	return &logLimiter{interval: interval}
}

// allow reports whether a log may be written at now, and how many were
// suppressed since the previous one.
func (l *logLimiter) allow(now time.Time) (int64, bool) {
	for {
		last := l.last.Load()
		if last != 0 && now.UnixNano()-last < int64(l.interval) {
			l.suppressed.Add(1)
			return 0, false
		}
		if l.last.CompareAndSwap(last, now.UnixNano()) {
			return l.suppressed.Swap(0), true
		}
	}
}
