package config

import (
	"fmt"
)

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	Host     string `env:"TWOFA_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"TWOFA_PG_PORT" env-default:"5432"`
	Database string `env:"TWOFA_PG_DATABASE" env-default:"twofa_db"`
	User     string `env:"TWOFA_PG_USER" env-default:"twofa"`
	Password string `env:"TWOFA_PG_PASSWORD" env-default:"pwd"`
	SSLMode  string `env:"TWOFA_PG_SSLMODE" env-default:"disable"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// RedisConfig points at the Redis used for method storage and send cooldowns
type RedisConfig struct {
	URL       string `env:"TWOFA_REDIS_URL" env-default:"redis://localhost:6379/0"`
	KeyPrefix string `env:"TWOFA_REDIS_KEY_PREFIX" env-default:"twofa:"`
}
