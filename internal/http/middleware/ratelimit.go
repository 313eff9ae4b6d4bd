// Package middleware – rate limiting
//
// Limiter is a process-local token bucket per caller, built on
// golang.org/x/time/rate. It guards the unauthenticated write paths
// (submission intake and admin login) against floods; it is not an
// authorization mechanism and does not coordinate across replicas.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to the identity whose bucket it draws from.
type KeyFunc func(*gin.Context) string

// ByAdminOrIP keys authenticated admins by subject and everyone else by
// client IP. The prefixes keep the two namespaces apart.
func ByAdminOrIP(c *gin.Context) string {
	if sub, ok := c.Get(UserIDKey); ok {
		if s, _ := sub.(string); s != "" {
			return "admin:" + s
		}
	}
	return "ip:" + c.ClientIP()
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per key. Buckets idle for longer than the
// eviction window are swept every sweepEvery lookups.
type Limiter struct {
	limit rate.Limit
	burst int
	key   KeyFunc

	mu         sync.Mutex
	buckets    map[string]*bucket
	idle       time.Duration
	sweepEvery int
	lookups    int
	now        func() time.Time
}

// NewLimiter allows rps sustained requests per key with the given burst
// (coerced to at least 1). A nil key defaults to ByAdminOrIP.
func NewLimiter(rps float64, burst int, key KeyFunc) *Limiter {
	if burst < 1 {
		burst = 1
	}
	if key == nil {
		key = ByAdminOrIP
	}
	return &Limiter{
		limit:      rate.Limit(rps),
		burst:      burst,
		key:        key,
		buckets:    make(map[string]*bucket),
		idle:       10 * time.Minute,
		sweepEvery: 5000,
		now:        time.Now,
	}
}

// allow takes one token from key's bucket.
func (l *Limiter) allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Sweep before the lookup so a stale bucket for key is dropped too.
	l.lookups++
	if l.lookups >= l.sweepEvery {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.idle {
				delete(l.buckets, k)
			}
		}
		l.lookups = 0
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// size reports the number of live buckets.
func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Handler rejects over-limit requests with 429 and a one-second Retry-After.
// Idempotent replays marked by IdempotencyKey do not consume tokens.
func (l *Limiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsReplay(c) || l.allow(l.key(c)) {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(1))
		abort(c, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
	}
}
