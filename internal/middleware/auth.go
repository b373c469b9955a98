// Package middleware holds gin middleware shared across the monitorflow
// services.
package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Authentication is a placeholder global middleware. It currently allows all
// requests; the ingestion boundary's auth surface is out of scope per
// SPEC_FULL.md §18.
func Authentication(c *gin.Context) {
	c.Next()
}

// IngestLimiter rate-limits the ingestion HTTP surface per client IP
// (spec.md §4.1's "rate-limited at ingress"). One token-bucket limiter per
// remote address, created lazily and kept for the process lifetime.
type IngestLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewIngestLimiter(requestsPerSecond float64, burst int) *IngestLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &IngestLimiter{
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *IngestLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Handler returns gin middleware that rejects requests with 429 once a
// remote address exceeds its token bucket.
func (l *IngestLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
