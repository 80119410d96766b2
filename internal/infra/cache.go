package infra

import (
	"github.com/rs/zerolog/log"

	"github.com/kentonium3/bake-tracker/internal/cache"
	"github.com/kentonium3/bake-tracker/internal/config"
)

// NewHierarchyCache selects the hierarchy cache backend from configuration.
func NewHierarchyCache(cfg *config.Config) (cache.HierarchyCache, error) {
	switch cfg.CacheBackend {
	case "redis":
		rdb, err := NewRedis(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		log.Info().Str("backend", "redis").Msg("hierarchy cache ready")
		return cache.NewRedisCache(rdb, cfg.CacheTTL()), nil
	case "none":
		return cache.NopCache{}, nil
	default:
		log.Info().Str("backend", "memory").Msg("hierarchy cache ready")
		return cache.NewMemoryCache(cfg.CacheTTL()), nil
	}
}
