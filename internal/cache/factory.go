package cache

import (
	"github.com/go-redis/redis/v8"
	"github.com/rotisserie/eris"

	"github.com/metspa/network-buddy-sub000/internal/config"
)

// New creates a cache backend from configuration. Unknown backends are an
// error rather than a silent fallback so misconfiguration surfaces at boot.
func New(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedis(client, cfg.KeyPrefix), nil
	default:
		return nil, eris.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
