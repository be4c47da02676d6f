package api

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/focusforward/caseguard/pkg/api/problem"
)

// Limiter decides whether one more request from key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// visitorTTL is how long an idle client keeps its bucket.
const visitorTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps one token bucket per key in process memory. Idle
// buckets are swept lazily, at most once per visitorTTL.
type LocalLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func NewLocalLimiter(rps float64, burst int) *LocalLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LocalLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > visitorTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1), nil
}

// size reports the number of tracked keys.
func (l *LocalLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// tokenBucketScript refills and consumes one bucket atomically.
// KEYS[1] = bucket key
// ARGV[1] = refill rate (tokens per second)
// ARGV[2] = capacity
// ARGV[3] = now (unix seconds, fractional)
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, math.ceil(capacity / rate) + 1)

return allowed
`)

// RedisLimiter shares token buckets across replicas.
type RedisLimiter struct {
	client redis.UniversalClient
	rps    float64
	burst  int
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, rps float64, burst int) *RedisLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RedisLimiter{client: client, rps: rps, burst: burst, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(l.now().UnixMicro()) / 1e6
	res, err := tokenBucketScript.Run(ctx, l.client, []string{"caseguard:rate:" + key}, l.rps, l.burst, now).Int64()
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	return res == 1, nil
}

// clientIP returns the remote address without its port.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = strings.TrimSuffix(strings.TrimPrefix(r.RemoteAddr, "["), "]")
	}
	return ip
}

// RateLimitMiddleware rejects clients over their budget with 429. A nil
// limiter disables limiting, and limiter errors let the request through.
func RateLimitMiddleware(l Limiter, rps float64, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	retryAfter := 1
	if rps > 0 && rps < 1 {
		retryAfter = int(math.Ceil(1 / rps))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := l.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				problem.TooManyRequests(w, r, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
