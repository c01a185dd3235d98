// Package ratelimit provides a per-client request limiter for the HTTP API.
package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client IP. Idle entries are evicted in
// the background so the map does not grow with every visitor ever seen.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}

	l := &Limiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
	}

	go l.cleanup()
	return l
}

// Handle returns a fiber middleware that rejects clients over their budget
// with 429 and a Retry-After hint.
func (l *Limiter) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.allow(c.IP()) {
			c.Set("Retry-After", "60")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()

	return v.limiter.Allow()
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for key, v := range l.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(l.visitors, key)
			}
		}
		l.mu.Unlock()
	}
}
