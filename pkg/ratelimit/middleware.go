package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
)

// Config holds rate limiting configuration
type Config struct {
	// Per-IP rate limiting
	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64

	// Per-User rate limiting (for authenticated requests)
	PerUserEnabled    bool
	PerUserCapacity   int
	PerUserRefillRate float64

	// Bucket TTL (how long to keep inactive buckets in memory)
	BucketTTL time.Duration

	// Seconds suggested in Retry-After
	RetryAfter int
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		// Per-IP: 100 requests per minute
		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 100.0 / 60.0,

		// Per-User: 60 requests per minute
		PerUserEnabled:    true,
		PerUserCapacity:   60,
		PerUserRefillRate: 1,

		BucketTTL:  1 * time.Hour,
		RetryAfter: 60,
	}
}

// Middleware holds the rate limiting middleware state
type Middleware struct {
	config      *Config
	ipLimiter   *RateLimiter
	userLimiter *RateLimiter
}

// NewMiddleware creates a new rate limiting middleware
func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{config: config}
	if config.PerIPEnabled {
		m.ipLimiter = NewRateLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL)
	}
	if config.PerUserEnabled {
		m.userLimiter = NewRateLimiter(config.PerUserCapacity, config.PerUserRefillRate, config.BucketTTL)
	}
	return m
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ip := getClientIP(r)
		if m.ipLimiter != nil && ip != "" {
			if ok, _ := m.ipLimiter.Allow(ctx, ip); !ok {
				m.rateLimitExceeded(w, r, "ip")
				return
			}
		}

		userID := getUserID(r)
		if m.userLimiter != nil && userID != "" {
			if ok, _ := m.userLimiter.Allow(ctx, userID); !ok {
				m.rateLimitExceeded(w, r, "user")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// Stop releases the limiters' cleanup goroutines
func (m *Middleware) Stop() {
	if m.ipLimiter != nil {
		m.ipLimiter.Stop()
	}
	if m.userLimiter != nil {
		m.userLimiter.Stop()
	}
}

// rateLimitExceeded handles rate limit exceeded responses
func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", getClientIP(r),
		"path", r.URL.Path,
		"method", r.Method,
	)

	w.Header().Set("Retry-After", strconv.Itoa(m.config.RetryAfter))
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, map[string]string{
		"code":    "rate_limit_exceeded",
		"message": "Too many requests. Please try again later.",
		"type":    limitType,
	})
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (set by proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	// Check X-Real-IP header (set by some proxies/load balancers)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is in format "IP:port", we only want the IP
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// getUserID extracts the user ID from JWT token in the request context
func getUserID(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || claims == nil {
		return ""
	}

	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if userID, ok := claims["user_id"].(string); ok && userID != "" {
		return userID
	}
	return ""
}
