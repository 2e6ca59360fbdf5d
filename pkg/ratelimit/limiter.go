package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether an action identified by key may proceed now
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	capacity   int              // Maximum number of tokens
	tokens     float64          // Current number of tokens
	refillRate float64          // Tokens added per second
	lastRefill time.Time        // Last time tokens were refilled
	now        func() time.Time // Clock
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
// capacity: Maximum number of requests allowed in a burst
// refillRate: Number of requests allowed per second
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity int, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow checks if a request should be allowed
// Returns true if the request is allowed, false if rate limited
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	// Refill tokens based on time elapsed
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Tokens returns the current number of available tokens
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = float64(tb.capacity)
	tb.lastRefill = tb.now()
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter manages one token bucket per key. It implements Limiter.
type RateLimiter struct {
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate float64
	ttl        time.Duration // Time to live for inactive buckets
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
// capacity: Maximum number of requests allowed in a burst per key
// refillRate: Number of requests allowed per second per key
// ttl: Time to keep inactive buckets in memory (0 = forever)
func NewRateLimiter(capacity int, refillRate float64, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	// Start cleanup goroutine if TTL is set
	if ttl > 0 {
		go rl.cleanup()
	}

	return rl
}

// Allow takes a token from key's bucket. It never returns an error.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rl.mu.Lock()
	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = newTokenBucket(rl.capacity, rl.refillRate, rl.now)
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	return bucket.Allow(), nil
}

// Reset resets the rate limiter for a specific key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		bucket.Reset()
	}
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanup periodically removes inactive buckets
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.idleSince()) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
}

// Stats returns statistics about the rate limiter
type Stats struct {
	ActiveBuckets int
	TotalCapacity int
	RefillRate    float64
}

// GetStats returns current statistics
func (rl *RateLimiter) GetStats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return Stats{
		ActiveBuckets: len(rl.buckets),
		TotalCapacity: rl.capacity,
		RefillRate:    rl.refillRate,
	}
}
