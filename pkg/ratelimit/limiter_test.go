package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTokenBucket_Allow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	tb := newTokenBucket(5, 1.0, clock.Now)

	// burst capacity
	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, tb.Allow(), "bucket should be empty")

	clock.Advance(2 * time.Second)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucket_Reset(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	tb := newTokenBucket(3, 1.0, clock.Now)
	for i := 0; i < 3; i++ {
		tb.Allow()
	}
	require.False(t, tb.Allow())

	tb.Reset()
	assert.Equal(t, 3.0, tb.Tokens())
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, 0.001, 0)
	ctx := context.Background()

	ok, err := rl.Allow(ctx, "user-1:method-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = rl.Allow(ctx, "user-1:method-1")
	assert.False(t, ok)

	ok, _ = rl.Allow(ctx, "user-1:method-2")
	assert.True(t, ok)

	rl.Reset("user-1:method-1")
	ok, _ = rl.Allow(ctx, "user-1:method-1")
	assert.True(t, ok)

	assert.Equal(t, 2, rl.GetStats().ActiveBuckets)
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(1, 1, 0)
	rl.ttl = time.Minute
	rl.now = clock.Now

	_, _ = rl.Allow(context.Background(), "a")
	clock.Advance(30 * time.Second)
	_, _ = rl.Allow(context.Background(), "b")
	clock.Advance(45 * time.Second)

	rl.evictIdle()
	stats := rl.GetStats()
	assert.Equal(t, 1, stats.ActiveBuckets)
	_, exists := rl.buckets["b"]
	assert.True(t, exists)
}

func TestRateLimiter_Stop(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Millisecond)
	rl.Stop()
	rl.Stop()
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(100, 0.001, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := rl.Allow(ctx, "shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, allowed)
}

func TestMiddleware_PerIP(t *testing.T) {
	m := NewMiddleware(&Config{PerIPEnabled: true, PerIPCapacity: 2, PerIPRefillRate: 0.001, RetryAfter: 30})
	defer m.Stop()
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/methods", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests {
			assert.Equal(t, "30", rr.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	// another client is not affected
	req := httptest.NewRequest(http.MethodGet, "/methods", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.2, 10.0.0.3")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestMiddleware_PerUser(t *testing.T) {
	tokenAuth := jwtauth.New("HS256", []byte("secret"), nil)
	m := NewMiddleware(&Config{PerUserEnabled: true, PerUserCapacity: 1, PerUserRefillRate: 0.001})
	defer m.Stop()

	h := jwtauth.Verifier(tokenAuth)(m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	_, token, err := tokenAuth.Encode(map[string]interface{}{"sub": "user-1"})
	require.NoError(t, err)

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/methods", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:1234"
	assert.Equal(t, "192.168.1.10", getClientIP(req))

	req.Header.Set("X-Real-IP", " 172.16.0.1 ")
	assert.Equal(t, "172.16.0.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(req))
}
