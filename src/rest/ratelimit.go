package rest

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Rate-limit headers Discord attaches to every response.
// https://discord.com/developers/docs/topics/rate-limits
const (
	headerBucket     = "X-RateLimit-Bucket"
	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerResetAfter = "X-RateLimit-Reset-After"
	headerGlobal     = "X-RateLimit-Global"
)

// bucket tracks the quota Discord reported for one server-assigned
// rate-limit group. Multiple routes may map onto the same bucket.
type bucket struct {
	id         string
	limit      int
	remaining  int
	resetAt    time.Time
	resetAfter time.Duration
}

// RateLimiter gates outbound requests on the buckets learned from
// response headers. Buckets are server-assigned and route-opaque, so
// nothing is derived locally: unknown routes pass optimistically and
// the first response teaches the limiter.
type RateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket // bucket id -> quota
	routes      map[string]string  // "METHOD route" -> bucket id
	globalUntil time.Time
	log         zerolog.Logger
}

func NewRateLimiter(log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		routes:  make(map[string]string),
		log:     log.With().Str("component", "ratelimit").Logger(),
	}
}

func routeKey(method string, route string) string {
	return method + " " + route
}

// Acquire blocks until the bucket for (method, route) has remaining
// quota and the global gate is open. Remaining quota is never
// decremented locally; the server's next headers are authoritative.
func (rl *RateLimiter) Acquire(ctx context.Context, method string, route string) error {
	for {
		wait := rl.nextWait(method, route)
		if wait <= 0 {
			return nil
		}
		rl.log.Debug().Str("route", route).Dur("wait", wait).Msg("rate limited, waiting")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (rl *RateLimiter) nextWait(method string, route string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	if d := rl.globalUntil.Sub(now); d > 0 {
		return d
	}
	id, ok := rl.routes[routeKey(method, route)]
	if !ok {
		return 0
	}
	b, ok := rl.buckets[id]
	if !ok {
		return 0
	}
	if b.remaining > 0 {
		return 0
	}
	return b.resetAt.Sub(now)
}

// Observe updates bucket state from response headers and learns the
// (method, route) -> bucket association. Responses without a bucket
// header leave the limiter untouched. Observing identical headers
// twice is equivalent to observing them once.
func (rl *RateLimiter) Observe(method string, route string, h http.Header) {
	id := h.Get(headerBucket)
	if id == "" {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[id]
	if !ok {
		b = &bucket{id: id}
		rl.buckets[id] = b
	}
	rl.routes[routeKey(method, route)] = id
	if v, err := strconv.Atoi(h.Get(headerLimit)); err == nil {
		b.limit = v
	}
	if v, err := strconv.Atoi(h.Get(headerRemaining)); err == nil {
		b.remaining = v
	}
	if v, err := strconv.ParseFloat(h.Get(headerReset), 64); err == nil {
		sec := int64(v)
		nsec := int64((v - float64(sec)) * float64(time.Second))
		b.resetAt = time.Unix(sec, nsec)
	}
	if v, err := strconv.ParseFloat(h.Get(headerResetAfter), 64); err == nil {
		b.resetAfter = time.Duration(v * float64(time.Second))
		// Reset-After dodges clock skew; prefer it when present.
		b.resetAt = time.Now().Add(b.resetAfter)
	}
}

// ArmGlobal stops every Acquire until retryAfter elapses. Used on a
// 429 carrying X-RateLimit-Global.
func (rl *RateLimiter) ArmGlobal(retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	until := time.Now().Add(retryAfter)
	if until.After(rl.globalUntil) {
		rl.globalUntil = until
	}
	rl.log.Warn().Dur("retry_after", retryAfter).Msg("global rate limit armed")
}

// GlobalDeadline reports the current global gate deadline; zero when
// the gate is open.
func (rl *RateLimiter) GlobalDeadline() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Now().After(rl.globalUntil) {
		return time.Time{}
	}
	return rl.globalUntil
}
