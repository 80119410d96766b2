package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/kentonium3/bake-tracker/internal/dto"
	"github.com/kentonium3/bake-tracker/internal/model"
)

// RedisCache stores hierarchies in one hash per parent, field = depth,
// value = JSON. Invalidation deletes the whole hash, so every depth entry
// for the parent goes at once; the TTL rides on the hash key.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func redisKey(parent model.ParentRef) string {
	return fmt.Sprintf("hierarchy:%s:%s", parent.Kind, parent.ID)
}

func (c *RedisCache) Get(ctx context.Context, parent model.ParentRef, maxDepth int) (*dto.HierarchyNode, bool) {
	raw, err := c.rdb.HGet(ctx, redisKey(parent), strconv.Itoa(maxDepth)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Debug().Err(err).Str("parent", redisKey(parent)).Msg("hierarchy cache read failed")
		return nil, false
	}

	var node dto.HierarchyNode
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		log.Debug().Err(err).Str("parent", redisKey(parent)).Msg("hierarchy cache entry corrupt")
		return nil, false
	}
	return &node, true
}

func (c *RedisCache) Put(ctx context.Context, parent model.ParentRef, maxDepth int, node *dto.HierarchyNode) {
	raw, err := json.Marshal(node)
	if err != nil {
		log.Debug().Err(err).Msg("hierarchy cache marshal failed")
		return
	}

	key := redisKey(parent)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(maxDepth), raw)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Debug().Err(err).Str("parent", key).Msg("hierarchy cache write failed")
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, parent model.ParentRef) {
	if err := c.rdb.Del(ctx, redisKey(parent)).Err(); err != nil {
		log.Debug().Err(err).Str("parent", redisKey(parent)).Msg("hierarchy cache invalidate failed")
	}
}

var _ HierarchyCache = (*RedisCache)(nil)
