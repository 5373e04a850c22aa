// Package middleware contains the Gin middleware used by the ops HTTP server.
//
// This file implements a process-local token-bucket limiter keyed by client
// IP, built on golang.org/x/time/rate. Idle buckets are evicted
// opportunistically so memory stays bounded. Paths in the exempt set (probes
// and scrapes) are never limited.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// gcEvery is the number of lookups between idle-bucket sweeps.
const gcEvery = 1000

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces per-client request rates. Safe for concurrent use.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	exempt map[string]bool

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups int
	idleTTL time.Duration
	now     func() time.Time
}

// NewRateLimiter allows rps requests per second per client with the given
// burst (coerced to at least 1). Requests whose route is in exempt skip the
// limiter.
func NewRateLimiter(rps float64, burst int, exempt ...string) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	ex := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		ex[p] = true
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		exempt:  ex,
		buckets: make(map[string]*bucket),
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// limiterFor returns the bucket for key, sweeping idle buckets first so a
// stale bucket can be replaced by a fresh one.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= gcEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// Handler returns the Gin middleware. Rejected requests get 429 with a
// Retry-After header and the standard error envelope.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.exempt[routeOf(c)] {
			c.Next()
			return
		}
		lim := rl.limiterFor(c.ClientIP())
		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rl.rps)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfterSeconds is the whole seconds until one token refills.
func retryAfterSeconds(rps rate.Limit) int {
	if rps <= 0 || rps == rate.Inf {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(rps))))
}
