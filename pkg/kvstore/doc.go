// Package kvstore provides the environment-aware key-value store client
// shared by usage, cost, budget and health tracking.
//
// # Overview
//
// Backend is the raw store. Three implementations are provided:
//
//   - RedisBackend: Redis via go-redis (redis:// and rediss:// URLs)
//   - SQLiteBackend: single-node persistence (sqlite:// URLs)
//   - MemoryBackend: in-process storage for tests (memory://)
//
// Client decorates a Backend with the environment key prefix, a
// per-operation timeout, at most one retry, and failure conversion:
//
//	env := environment.FromOS(logger)
//	client, err := kvstore.Connect(env, cfg.Store, kvstore.OptionsFromConfig(cfg.Store))
//
//	n, err := client.Increment(ctx, "usage:maps:/geocode:2026-10-18", 1, 90*24*time.Hour)
//	if errors.Is(err, kvstore.ErrUnavailable) {
//	    // analytics absent, keep serving
//	}
//
// # Degradation
//
// When the environment has no store credentials, or the store cannot be
// reached, every operation returns ErrUnavailable. Failures are logged at
// most once per store.error_log_interval.
//
// # Thread Safety
//
// All backends and Client are safe for concurrent use. Counter increments
// and RaiseTo are atomic in the store itself.
package kvstore
