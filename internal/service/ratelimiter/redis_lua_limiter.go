// Package ratelimiter enforces per-user model quotas with a Redis token bucket.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// UserAIPrefix is the bucket prefix that meters model calls per user.
const UserAIPrefix = "ai:user"

// UserAIKey returns the bucket key of userID's model quota.
func UserAIKey(userID string) string { return UserAIPrefix + ":" + userID }

// Store persists bucket snapshots so quotas survive a Redis flush.
// *pgxpool.Pool satisfies it.
type Store interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type BucketConfig struct {
	Capacity   int64
	RefillRate float64
}

func (c BucketConfig) enabled() bool { return c.Capacity > 0 && c.RefillRate > 0 }

func NewBucketConfigFromPerMinute(perMinute int) BucketConfig {
	if perMinute <= 0 {
		return BucketConfig{}
	}
	return BucketConfig{
		Capacity:   int64(perMinute),
		RefillRate: float64(perMinute) / 60.0,
	}
}

// RedisLuaLimiter runs the bucket arithmetic atomically inside Redis.
// Buckets are configured either per exact key or per prefix: a config
// registered under "ai:user" applies to "ai:user:<id>".
type RedisLuaLimiter struct {
	redis   *redis.Client
	store   Store
	buckets map[string]BucketConfig
	script  *redis.Script
	now     func() time.Time
	mu      sync.RWMutex
}

func NewRedisLuaLimiter(rdb *redis.Client, store Store, buckets map[string]BucketConfig) *RedisLuaLimiter {
	if rdb == nil {
		return nil
	}
	cp := make(map[string]BucketConfig, len(buckets))
	for k, v := range buckets {
		cp[k] = v
	}
	return &RedisLuaLimiter{
		redis:   rdb,
		store:   store,
		buckets: cp,
		script:  redis.NewScript(luaTokenBucketScript),
		now:     time.Now,
	}
}

// Fractions are returned as strings; Redis truncates Lua numbers to integers.
const luaTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] then
  tokens = tonumber(data[1]) or capacity
end
if data[2] then
  last_refill = tonumber(data[2]) or now
end

local delta = now - last_refill
if delta < 0 then
  delta = 0
end

tokens = math.min(capacity, tokens + delta * refill_rate)

local allowed = 0
local retry_after = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
elseif refill_rate > 0 then
  retry_after = (cost - tokens) / refill_rate
end

redis.call("HSET", key, "tokens", tostring(tokens), "last_refill", tostring(now))
if ttl > 0 then
  redis.call("EXPIRE", key, ttl)
end

return { allowed, tostring(tokens), tostring(now), tostring(retry_after) }
`

// Allow spends cost tokens from key's bucket. Unconfigured keys and Redis
// failures are allowed; the error is still returned on failure.
func (l *RedisLuaLimiter) Allow(ctx context.Context, key string, cost int64) (bool, time.Duration, error) {
	if l == nil || l.redis == nil {
		return true, 0, nil
	}
	cfg, ok := l.lookup(key)
	if !ok || !cfg.enabled() {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}

	nowSec := float64(l.now().UnixNano()) / 1e9
	// A bucket left alone refills completely; keep it a little past that.
	ttl := int64(math.Ceil(float64(cfg.Capacity)/cfg.RefillRate)) + 60

	res, err := l.script.Run(ctx, l.redis, []string{redisKey(key)}, cfg.Capacity, cfg.RefillRate, nowSec, cost, ttl).Result()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("key", key), slog.Any("error", err))
		return true, 0, fmt.Errorf("op=ratelimiter.Allow: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 4 {
		slog.Error("redis rate limiter unexpected script result", slog.String("key", key), slog.Any("result", res))
		return true, 0, nil
	}

	allowed := toInt64(vals[0]) == 1
	tokens := toFloat64(vals[1])
	lastRefill := toFloat64(vals[2])
	retryAfter := time.Duration(toFloat64(vals[3]) * float64(time.Second))

	if l.store != nil {
		l.mirror(ctx, key, cfg, tokens, lastRefill)
	}
	return allowed, retryAfter, nil
}

func (l *RedisLuaLimiter) lookup(key string) (BucketConfig, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if cfg, ok := l.buckets[key]; ok {
		return cfg, true
	}
	best, found := "", false
	for prefix := range l.buckets {
		if strings.HasPrefix(key, prefix+":") && len(prefix) > len(best) {
			best, found = prefix, true
		}
	}
	if !found {
		return BucketConfig{}, false
	}
	return l.buckets[best], true
}

func (l *RedisLuaLimiter) mirror(ctx context.Context, key string, cfg BucketConfig, tokens, lastRefillSec float64) {
	_, err := l.store.Exec(ctx,
		`INSERT INTO rate_limit_buckets (bucket_key, capacity, refill_rate, tokens, last_refill)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (bucket_key) DO UPDATE SET
		   capacity = EXCLUDED.capacity,
		   refill_rate = EXCLUDED.refill_rate,
		   tokens = EXCLUDED.tokens,
		   last_refill = EXCLUDED.last_refill`,
		key, cfg.Capacity, cfg.RefillRate, tokens, fromEpoch(lastRefillSec),
	)
	if err != nil {
		slog.Error("failed to mirror rate limit bucket to postgres", slog.String("key", key), slog.Any("error", err))
	}
}

// WarmFromPostgres copies the persisted snapshots back into Redis.
func (l *RedisLuaLimiter) WarmFromPostgres(ctx context.Context) error {
	if l == nil || l.store == nil || l.redis == nil {
		return nil
	}

	rows, err := l.store.Query(ctx, `SELECT bucket_key, tokens, EXTRACT(EPOCH FROM last_refill)::float8 FROM rate_limit_buckets`)
	if err != nil {
		return fmt.Errorf("op=ratelimiter.WarmFromPostgres: %w", err)
	}
	defer rows.Close()

	warmed := 0
	for rows.Next() {
		var key string
		var tokens, lastRefillSec float64
		if err := rows.Scan(&key, &tokens, &lastRefillSec); err != nil {
			return fmt.Errorf("op=ratelimiter.WarmFromPostgres: %w", err)
		}
		err := l.redis.HSet(ctx, redisKey(key),
			"tokens", strconv.FormatFloat(tokens, 'f', -1, 64),
			"last_refill", strconv.FormatFloat(lastRefillSec, 'f', -1, 64),
		).Err()
		if err != nil {
			slog.Error("failed to warm Redis bucket from postgres", slog.String("key", key), slog.Any("error", err))
			continue
		}
		warmed++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("op=ratelimiter.WarmFromPostgres: %w", err)
	}
	slog.Info("rate limit buckets warmed", slog.Int("count", warmed))
	return nil
}

// SetBucketConfig updates or creates the bucket configuration for a key or prefix.
// It is safe for concurrent use.
func (l *RedisLuaLimiter) SetBucketConfig(key string, cfg BucketConfig) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[key] = cfg
}

func redisKey(key string) string { return "rate:" + key }

func fromEpoch(sec float64) time.Time {
	whole := math.Floor(sec)
	return time.Unix(int64(whole), int64((sec-whole)*1e9)).UTC()
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
