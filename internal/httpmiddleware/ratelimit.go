package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a per-client token bucket. Buckets refill continuously at
// perMinute/60 tokens per second up to capacity. In-memory only; a scan-heavy
// kiosk shares one IP, so the capacity should cover a burst of scans.
type RateLimiter struct {
	capacity  float64
	perSecond float64

	mu      sync.Mutex
	buckets map[string]*clientBucket
}

type clientBucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per client.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		capacity:  float64(perMinute),
		perSecond: float64(perMinute) / 60,
		buckets:   make(map[string]*clientBucket),
	}
}

// Middleware returns a gin handler enforcing per-IP limits.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.take(key, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) take(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &clientBucket{tokens: l.capacity - 1, seen: now}
		return true
	}
	b.tokens += now.Sub(b.seen).Seconds() * l.perSecond
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
