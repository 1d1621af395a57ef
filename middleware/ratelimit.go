package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pairchat/utils"
)

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// memoryRateLimiter keeps a token bucket per key and forgets idle keys.
type memoryRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryRateLimiter allows requests per window per key, with burst extra.
func NewMemoryRateLimiter(requests int, window time.Duration, burst int) RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if burst <= 0 {
		burst = requests
	}
	return &memoryRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    burst,
		ttl:      5 * time.Minute,
		now:      time.Now,
	}
}

func (l *memoryRateLimiter) Allow(_ context.Context, key string) bool {
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	for k, other := range l.visitors {
		if now.Sub(other.lastSeen) > l.ttl {
			delete(l.visitors, k)
		}
	}
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// RedisRateLimiter is a fixed-window counter shared by every instance. It
// fails open when redis is unreachable.
type RedisRateLimiter struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
	Log    zerolog.Logger
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("rate_limit:%s", key)
	count, err := l.Client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.Log.Warn().Err(err).Msg("rate limit counter unavailable")
		return true
	}
	if count == 1 {
		if err := l.Client.Expire(ctx, redisKey, l.Window).Err(); err != nil {
			l.Log.Warn().Err(err).Msg("rate limit expiry")
		}
	}
	return count <= int64(l.Limit)
}

// RateLimit keys on the authenticated user when present, otherwise the
// client IP.
func RateLimit(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetUserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !limiter.Allow(c.Request.Context(), key) {
			utils.TooManyRequests(c, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
