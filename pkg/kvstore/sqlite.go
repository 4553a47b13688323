package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for persistence.
// It is suitable for single-node deployments and local development where a
// Redis instance is not available.
//
// SQLiteBackend uses a write-ahead log (WAL) and a single connection, so
// every statement is serialized and the read-modify-write statements below
// are atomic.
type SQLiteBackend struct {
	db              *sql.DB
	dbPath          string
	now             func() time.Time
	cleanupInterval time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CleanupInterval is how often expired rows are deleted and the WAL
	// checkpointed.
	// Default: 5 minutes
	CleanupInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// Now overrides the clock. Default: time.Now
	Now func() time.Time
}

// NewSQLiteBackend creates a new SQLite backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a new SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:              db,
		dbPath:          cfg.DBPath,
		now:             cfg.Now,
		cleanupInterval: cfg.CleanupInterval,
		done:            make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	go backend.cleanupLoop()

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
// Times are stored as unix milliseconds; a NULL expiry never expires.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS event_keys (
		key TEXT PRIMARY KEY,
		expires_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS events (
		key TEXT NOT NULL,
		at INTEGER NOT NULL,
		member TEXT NOT NULL,
		PRIMARY KEY (key, member)
	);

	CREATE INDEX IF NOT EXISTS idx_kv_expires_at ON kv(expires_at);
	CREATE INDEX IF NOT EXISTS idx_events_key_at ON events(key, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteBackend) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *SQLiteBackend) expiresAt(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return s.now().Add(ttl).UnixMilli()
}

// Get returns the value stored at key.
func (s *SQLiteBackend) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ?1 AND (expires_at IS NULL OR expires_at > ?2)`,
		key, s.nowMillis(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return value, nil
}

// Set stores value at key.
func (s *SQLiteBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?1, ?2, ?3)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, s.expiresAt(ttl))
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// IncrBy atomically adds amount to the integer at key. An expired row is
// restarted from zero with a fresh expiry.
func (s *SQLiteBackend) IncrBy(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?1, ?2, ?3)
		ON CONFLICT (key) DO UPDATE SET
			value = CASE
				WHEN kv.expires_at IS NOT NULL AND kv.expires_at <= ?4 THEN excluded.value
				ELSE CAST(kv.value AS INTEGER) + excluded.value
			END,
			expires_at = CASE
				WHEN kv.expires_at IS NOT NULL AND kv.expires_at <= ?4 THEN excluded.expires_at
				ELSE COALESCE(kv.expires_at, excluded.expires_at)
			END
		RETURNING value
	`, key, amount, s.expiresAt(ttl), s.nowMillis()).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment key: %w", err)
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value at %q is not an integer", key)
	}
	return n, nil
}

// Scan returns every live key starting with prefix.
func (s *SQLiteBackend) Scan(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM kv
		WHERE substr(key, 1, length(?1)) = ?1 AND (expires_at IS NULL OR expires_at > ?2)
		UNION ALL
		SELECT key FROM event_keys
		WHERE substr(key, 1, length(?1)) = ?1 AND (expires_at IS NULL OR expires_at > ?2)
	`, prefix, s.nowMillis())
	if err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return keys, nil
}

// RaiseTo stores value at key if the current value is lower.
func (s *SQLiteBackend) RaiseTo(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?1, ?2, ?3)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		WHERE (kv.expires_at IS NOT NULL AND kv.expires_at <= ?4)
			OR CAST(kv.value AS INTEGER) < CAST(excluded.value AS INTEGER)
	`, key, strconv.FormatInt(value, 10), s.expiresAt(ttl), s.nowMillis())
	if err != nil {
		return false, fmt.Errorf("failed to raise key: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// AppendEvent adds member to the time-ordered collection at key.
func (s *SQLiteBackend) AppendEvent(ctx context.Context, key string, at time.Time, member string, retention time.Duration, maxLen int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.nowMillis()

	// A collection whose key expired starts over
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM events WHERE key = ?1 AND EXISTS (
			SELECT 1 FROM event_keys WHERE key = ?1 AND expires_at IS NOT NULL AND expires_at <= ?2
		)
	`, key, now); err != nil {
		return fmt.Errorf("failed to reset expired collection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events (key, at, member) VALUES (?1, ?2, ?3)
		ON CONFLICT (key, member) DO UPDATE SET at = excluded.at
	`, key, at.UnixMilli(), member); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	if retention > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM events WHERE key = ?1 AND at < ?2`,
			key, at.Add(-retention).UnixMilli(),
		); err != nil {
			return fmt.Errorf("failed to trim events by age: %w", err)
		}
	}

	if maxLen > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM events WHERE key = ?1 AND member IN (
				SELECT member FROM events WHERE key = ?1
				ORDER BY at DESC, member DESC
				LIMIT -1 OFFSET ?2
			)
		`, key, maxLen); err != nil {
			return fmt.Errorf("failed to trim events by count: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO event_keys (key, expires_at) VALUES (?1, ?2)
		ON CONFLICT (key) DO UPDATE SET expires_at = excluded.expires_at
	`, key, s.expiresAt(retention)); err != nil {
		return fmt.Errorf("failed to update collection expiry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RangeEvents returns the members of the collection at key within [from, to].
func (s *SQLiteBackend) RangeEvents(ctx context.Context, key string, from, to time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.at, e.member FROM events e
		JOIN event_keys k ON k.key = e.key
		WHERE e.key = ?1 AND e.at >= ?2 AND e.at <= ?3
			AND (k.expires_at IS NULL OR k.expires_at > ?4)
		ORDER BY e.at, e.member
	`, key, from.UnixMilli(), to.UnixMilli(), s.nowMillis())
	if err != nil {
		return nil, fmt.Errorf("failed to range events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			at     int64
			member string
		)
		if err := rows.Scan(&at, &member); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		events = append(events, Event{At: time.UnixMilli(at), Member: member})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}

// Ping checks that the database is reachable.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Cleanup deletes expired rows and returns how many keys were removed.
func (s *SQLiteBackend) Cleanup(ctx context.Context) (int, error) {
	now := s.nowMillis()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM events WHERE key IN (
			SELECT key FROM event_keys WHERE expires_at IS NOT NULL AND expires_at <= ?1
		)
	`, now); err != nil {
		return 0, fmt.Errorf("failed to cleanup events: %w", err)
	}
	result, err = s.db.ExecContext(ctx,
		`DELETE FROM event_keys WHERE expires_at IS NOT NULL AND expires_at <= ?1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup event keys: %w", err)
	}
	eventKeys, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted + eventKeys), nil
}

// Close releases any resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// cleanupLoop periodically deletes expired rows and checkpoints the WAL.
func (s *SQLiteBackend) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.Cleanup(context.Background())
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
