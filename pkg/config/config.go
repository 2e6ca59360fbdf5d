package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is everything the twofa server reads from the environment
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Email     EmailConfig
	SES       SESConfig
	SMS       SMSGatewayConfig
	JWT       JWTConfig
	Twofa     TwofaConfig
	RateLimit RateLimitConfig
}

// Load reads envFile into the process environment when it exists, then
// fills Config from the environment and validates it.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			slog.Info("No env file found, using environment", "file", envFile)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late at startup
func (c Config) Validate() error {
	return Validate(
		func() ValidationErrors {
			return CollectErrors(
				RequireOneOf("TWOFA_PERSISTENCE", c.Twofa.PersistenceType, []string{"postgres", "postgresql", "redis", "file", "inmem", "memory"}),
				RequireOneOf("TWOFA_TOTP_PROVIDER", c.Twofa.TotpProvider, []string{"pquerna", "gotp"}),
				RequireOneOf("TWOFA_SEND_LIMITER", c.Twofa.SendLimiter, []string{SendLimiterNone, SendLimiterMemory, SendLimiterRedis}),
				RequirePositiveDuration("TWOFA_DELIVERY_TIMEOUT", c.Twofa.DeliveryTimeout),
				RequireNonNegativeDuration("TWOFA_MIN_SEND_INTERVAL", c.Twofa.MinSendInterval),
				RequirePositiveDuration("TWOFA_SEND_COOLDOWN", c.Twofa.SendCooldown),
				RequirePositive("TWOFA_SEND_BURST", c.Twofa.SendBurst),
				WhenSet(c.Twofa.SecretKey, func() *ValidationError {
					return RequireMinLength("TWOFA_SECRET_KEY", c.Twofa.SecretKey, 16)
				}),
				RequireNonEmpty("JWT_SECRET", c.JWT.Secret),
			)
		},
		func() ValidationErrors {
			switch c.Twofa.PersistenceType {
			case "postgres", "postgresql":
				return CollectErrors(
					RequireNonEmpty("TWOFA_PG_HOST", c.Database.Host),
					RequireValidPort("TWOFA_PG_PORT", c.Database.Port),
				)
			case "file":
				return CollectErrors(RequireNonEmpty("TWOFA_DATA_DIR", c.Twofa.DataDir))
			}
			return nil
		},
		func() ValidationErrors {
			if c.Twofa.PersistenceType == "redis" || c.Twofa.SendLimiter == SendLimiterRedis {
				return CollectErrors(RequireValidURL("TWOFA_REDIS_URL", c.Redis.URL))
			}
			return nil
		},
		func() ValidationErrors {
			var errs []*ValidationError
			if c.Email.Enabled && !c.SES.IsConfigured() {
				errs = append(errs, RequireValidPort("EMAIL_PORT", c.Email.Port), RequireValidEmail("EMAIL_FROM", c.Email.From))
			}
			if c.SES.IsConfigured() {
				errs = append(errs, RequireValidEmail("SES_FROM", c.SES.From))
			}
			if c.SMS.IsConfigured() {
				errs = append(errs, RequireValidURL("SMS_GATEWAY_URL", c.SMS.URL))
			}
			return CollectErrors(errs...)
		},
	)
}
