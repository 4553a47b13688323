package kvstore

import (
	"fmt"
	"net/url"
	"strings"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/environment"
)

// Open creates the backend addressed by creds. The URL scheme selects the
// implementation:
//
//	redis://[user:password@]host:port[/db]   RedisBackend
//	rediss://...                             RedisBackend over TLS
//	sqlite:///path/to/file.db                SQLiteBackend
//	memory://                                MemoryBackend
func Open(creds environment.Credentials, cfg config.StoreConfig) (Backend, error) {
	if creds.IsZero() {
		return nil, fmt.Errorf("no store URL: %w", ErrUnavailable)
	}

	u, err := url.Parse(creds.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid store URL %s", environment.RedactURL(creds.URL))
	}

	switch strings.ToLower(u.Scheme) {
	case "redis", "rediss":
		return NewRedisBackend(RedisBackendConfig{
			URL:              creds.URL,
			Token:            creds.Token,
			PoolSize:         cfg.PoolSize,
			OperationTimeout: cfg.OperationTimeout,
		})

	case "sqlite":
		path := u.Host + u.Path
		if path == "" {
			return nil, fmt.Errorf("sqlite store URL has no path")
		}
		return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
			DBPath:      path,
			BusyTimeout: cfg.SQLiteBusyTimeout,
		})

	case "memory":
		return NewMemoryBackend(), nil

	default:
		return nil, fmt.Errorf("unsupported store scheme %q (valid: redis, rediss, sqlite, memory)", u.Scheme)
	}
}
