package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"menu_translator/auth_system/settings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter 固定窗口计数器；返回 false 表示当前窗口已超限。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	windowStart time.Time
	count       int
}

// MemoryLimiter 进程内限流，单实例部署时使用。
type MemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryLimiter(window time.Duration, limit int) *MemoryLimiter {
	if window <= 0 {
		window = settings.RateLimitWindow
	}
	return &MemoryLimiter{
		window:  window,
		limit:   limit,
		buckets: map[string]*bucket{},
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists || now.Sub(b.windowStart) >= l.window {
		l.buckets[key] = &bucket{windowStart: now, count: 1}
		l.sweepLocked(now)
		return true, nil
	}

	if b.count >= l.limit {
		return false, nil
	}
	b.count++
	return true, nil
}

// sweepLocked 清理过期窗口，避免长时间运行后 map 无限增长。
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if len(l.buckets) < 1024 {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.window {
			delete(l.buckets, key)
		}
	}
}

// RedisLimiter 多实例共享计数，键按窗口分桶并随窗口过期。
type RedisLimiter struct {
	rdb    redis.UniversalClient
	window time.Duration
	limit  int
	now    func() time.Time
}

func NewRedisLimiter(rdb redis.UniversalClient, window time.Duration, limit int) *RedisLimiter {
	if window <= 0 {
		window = settings.RateLimitWindow
	}
	return &RedisLimiter{rdb: rdb, window: window, limit: limit, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := l.now().UnixNano() / l.window.Nanoseconds()
	redisKey := fmt.Sprintf("%s%s:%d", settings.RateLimitKeyPrefix, key, slot)

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("incr rate counter: %w", err)
	}
	if count == 1 {
		if err := l.rdb.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return true, fmt.Errorf("expire rate counter: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}

// RateLimitMiddleware 按已认证用户（否则按 IP）限流。limiter 为 nil 时不限流；
// 计数存储异常时放行并记录日志。
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := CurrentUserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		} else {
			key = "user:" + key
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Printf("[ratelimit] counter unavailable, allowing request: %v", err)
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "Too many requests, please try again later"})
			return
		}

		c.Next()
	}
}
