package config

import (
	"time"
)

const (
	SendLimiterNone   = ""
	SendLimiterMemory = "memory"
	SendLimiterRedis  = "redis"
)

// TwofaConfig holds the two-factor service settings
type TwofaConfig struct {
	PersistenceType string        `env:"TWOFA_PERSISTENCE" env-default:"postgres"`
	DataDir         string        `env:"TWOFA_DATA_DIR" env-default:"./data"`
	TotpProvider    string        `env:"TWOFA_TOTP_PROVIDER" env-default:"pquerna"`
	Window          uint          `env:"TWOFA_WINDOW" env-default:"2"`
	DeliveryTimeout time.Duration `env:"TWOFA_DELIVERY_TIMEOUT" env-default:"30s"`
	MinSendInterval time.Duration `env:"TWOFA_MIN_SEND_INTERVAL" env-default:"0s"`
	SendLimiter     string        `env:"TWOFA_SEND_LIMITER"`
	SendCooldown    time.Duration `env:"TWOFA_SEND_COOLDOWN" env-default:"30s"`
	SendBurst       int           `env:"TWOFA_SEND_BURST" env-default:"3"`
	SecretKey       string        `env:"TWOFA_SECRET_KEY"`
	MetricsEnabled  bool          `env:"TWOFA_METRICS_ENABLED" env-default:"true"`
	AdminRoles      []string      `env:"TWOFA_ADMIN_ROLES" env-default:"admin,superadmin" env-separator:","`
}

// JWTConfig holds the key used to verify access tokens
type JWTConfig struct {
	Secret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}
