package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterCache maps client IPs to token buckets, with opportunistic TTL
// sweeping so idle IPs do not accumulate forever.
type limiterCache struct {
	mu        sync.Mutex
	items     map[string]*limiterEntry
	ttl       time.Duration
	lastSweep time.Time
}

func newLimiterCache(ttl time.Duration) *limiterCache {
	return &limiterCache{items: make(map[string]*limiterEntry), ttl: ttl}
}

func (c *limiterCache) get(key string, makeFn func() *rate.Limiter) *rate.Limiter {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.lastSeen = now
		return e.lim
	}
	lim := makeFn()
	c.items[key] = &limiterEntry{lim: lim, lastSeen: now}

	if c.lastSweep.IsZero() || now.Sub(c.lastSweep) > 2*time.Minute {
		c.sweepLocked(now)
		c.lastSweep = now
	}
	return lim
}

func (c *limiterCache) sweepLocked(now time.Time) {
	for k, e := range c.items {
		if now.Sub(e.lastSeen) > c.ttl {
			delete(c.items, k)
		}
	}
}

// RateLimit applies a per-IP token bucket: r tokens per second with the
// given burst. Exhaustion answers 429.
func RateLimit(r float64, burst int) func(next http.Handler) http.Handler {
	cache := newLimiterCache(15 * time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			lim := cache.get(clientIP(req), func() *rate.Limiter {
				return rate.NewLimiter(rate.Limit(r), burst)
			})
			if !lim.Allow() {
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limit_error")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware rewrites
// RemoteAddr from forwarding headers before this runs.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
