package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// incrScript increments a counter and sets its expiry only when the key has
// none, in one round trip.
var incrScript = redis.NewScript(`
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 and redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return v
`)

// raiseScript sets KEYS[1] to ARGV[1] only if the stored integer is lower.
var raiseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// scanBatchSize is the COUNT hint passed to SCAN.
const scanBatchSize = 200

// RedisBackend implements Backend on Redis. Counters are plain strings,
// time-ordered collections are sorted sets scored by unix milliseconds.
type RedisBackend struct {
	client *redis.Client
}

// RedisBackendConfig configures the Redis backend.
type RedisBackendConfig struct {
	// URL is a redis:// or rediss:// URL.
	URL string

	// Token overrides the password in URL when set.
	Token string

	// PoolSize is the connection pool size.
	// Default: 10
	PoolSize int

	// OperationTimeout bounds dial, read and write.
	// Default: 1s
	OperationTimeout time.Duration
}

// NewRedisBackend creates a Redis backend. The connection is established
// lazily, so an unreachable server surfaces on the first operation.
func NewRedisBackend(cfg RedisBackendConfig) (*RedisBackend, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Token != "" {
		opt.Password = cfg.Token
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	opt.DialTimeout = timeout
	opt.ReadTimeout = timeout
	opt.WriteTimeout = timeout

	// Retries are decided by Client, never by the driver
	opt.MaxRetries = -1

	return NewRedisBackendFromClient(redis.NewClient(opt)), nil
}

// NewRedisBackendFromClient wraps an existing go-redis client.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Get returns the value stored at key.
func (r *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores value at key.
func (r *RedisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// IncrBy atomically adds amount to the integer at key.
func (r *RedisBackend) IncrBy(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	return incrScript.Run(ctx, r.client, []string{key}, amount, ttl.Milliseconds()).Int64()
}

// Scan returns every live key starting with prefix.
func (r *RedisBackend) Scan(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	match := escapeGlob(prefix) + "*"

	for {
		batch, next, err := r.client.Scan(ctx, cursor, match, scanBatchSize).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return dedupe(keys), nil
}

// RaiseTo stores value at key if the current value is lower.
func (r *RedisBackend) RaiseTo(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	raised, err := raiseScript.Run(ctx, r.client, []string{key}, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return raised == 1, nil
}

// AppendEvent adds member to the sorted set at key and trims it.
func (r *RedisBackend) AppendEvent(ctx context.Context, key string, at time.Time, member string, retention time.Duration, maxLen int) error {
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(at.UnixMilli()), Member: member})
	if retention > 0 {
		cutoff := strconv.FormatInt(at.Add(-retention).UnixMilli(), 10)
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff)
		pipe.PExpire(ctx, key, retention)
	}
	if maxLen > 0 {
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-maxLen-1))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RangeEvents returns the members of the sorted set at key within [from, to].
func (r *RedisBackend) RangeEvents(ctx context.Context, key string, from, to time.Time) ([]Event, error) {
	zs, err := r.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		events = append(events, Event{At: time.UnixMilli(int64(z.Score)), Member: member})
	}
	return events, nil
}

// Ping checks connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// escapeGlob escapes the SCAN MATCH metacharacters in s.
func escapeGlob(s string) string {
	var sb strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// dedupe removes duplicates; SCAN may return a key more than once.
func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
