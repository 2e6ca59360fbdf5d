package twofa

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RepositoryConfig contains configuration for creating a method repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories
	DB DBTX
	// DataDir is required for file-based repositories
	DataDir string
	// RedisClient is required for Redis repositories
	RedisClient redis.UniversalClient
	// RedisKeyPrefix defaults to "twofa:"
	RedisKeyPrefix string
}

// NewMethodRepository creates a new method repository based on the persistence type
func NewMethodRepository(persistenceType string, config RepositoryConfig) (MethodRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresMethodRepository(config.DB), nil
	case "redis":
		if config.RedisClient == nil {
			return nil, fmt.Errorf("redis client required for redis repository")
		}
		return NewRedisMethodRepository(config.RedisClient, config.RedisKeyPrefix), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileMethodRepository(config.DataDir)
	case "inmem", "memory":
		return NewInMemoryMethodRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, redis, file, inmem)", persistenceType)
	}
}
