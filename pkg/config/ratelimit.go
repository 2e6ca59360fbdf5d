package config

import (
	"time"

	"github.com/tendant/simple-idm-twofa/pkg/ratelimit"
)

// RateLimitConfig contains HTTP rate limiting settings
type RateLimitConfig struct {
	PerIPEnabled      bool          `env:"RATELIMIT_PER_IP_ENABLED" env-default:"true"`
	PerIPCapacity     int           `env:"RATELIMIT_PER_IP_CAPACITY" env-default:"100"`
	PerIPRefillRate   float64       `env:"RATELIMIT_PER_IP_REFILL_RATE" env-default:"1.67"`
	PerUserEnabled    bool          `env:"RATELIMIT_PER_USER_ENABLED" env-default:"true"`
	PerUserCapacity   int           `env:"RATELIMIT_PER_USER_CAPACITY" env-default:"60"`
	PerUserRefillRate float64       `env:"RATELIMIT_PER_USER_REFILL_RATE" env-default:"1"`
	BucketTTL         time.Duration `env:"RATELIMIT_BUCKET_TTL" env-default:"1h"`
	RetryAfter        int           `env:"RATELIMIT_RETRY_AFTER" env-default:"60"`
}

// ToMiddlewareConfig converts the config for ratelimit.NewMiddleware
func (c RateLimitConfig) ToMiddlewareConfig() *ratelimit.Config {
	return &ratelimit.Config{
		PerIPEnabled:      c.PerIPEnabled,
		PerIPCapacity:     c.PerIPCapacity,
		PerIPRefillRate:   c.PerIPRefillRate,
		PerUserEnabled:    c.PerUserEnabled,
		PerUserCapacity:   c.PerUserCapacity,
		PerUserRefillRate: c.PerUserRefillRate,
		BucketTTL:         c.BucketTTL,
		RetryAfter:        c.RetryAfter,
	}
}
