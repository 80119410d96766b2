// Package cache provides the hierarchy cache behind an injectable interface
// so callers (and tests) can substitute backends: an in-process TTL map, a
// Redis hash per parent, or a no-op.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kentonium3/bake-tracker/internal/dto"
	"github.com/kentonium3/bake-tracker/internal/model"
)

// DefaultTTL is how long a cached hierarchy stays valid unless invalidated.
const DefaultTTL = 5 * time.Minute

// HierarchyCache stores computed hierarchy trees keyed by (parent, depth).
// Get returns (nil, false) on miss or expiry. Put and Invalidate are
// best-effort: a failing backend degrades to recomputation, never to an
// error surfaced to the caller.
type HierarchyCache interface {
	Get(ctx context.Context, parent model.ParentRef, maxDepth int) (*dto.HierarchyNode, bool)
	Put(ctx context.Context, parent model.ParentRef, maxDepth int, node *dto.HierarchyNode)
	Invalidate(ctx context.Context, parent model.ParentRef)
}

type memoryEntry struct {
	node     *dto.HierarchyNode
	storedAt time.Time
}

// MemoryCache is the default in-process backend: a mutex-guarded map of
// (value, timestamp) pairs. Entries expire after ttl; graph mutations
// invalidate eagerly so the TTL is only a backstop.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time // injectable clock for deterministic tests
}

// NewMemoryCache builds a memory cache. A non-positive ttl falls back to
// DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func cacheKey(parent model.ParentRef, maxDepth int) string {
	return fmt.Sprintf("%s:%s:%d", parent.Kind, parent.ID, maxDepth)
}

func parentPrefix(parent model.ParentRef) string {
	return fmt.Sprintf("%s:%s:", parent.Kind, parent.ID)
}

func (c *MemoryCache) Get(_ context.Context, parent model.ParentRef, maxDepth int) (*dto.HierarchyNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey(parent, maxDepth)]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, cacheKey(parent, maxDepth))
		return nil, false
	}
	return entry.node, true
}

func (c *MemoryCache) Put(_ context.Context, parent model.ParentRef, maxDepth int, node *dto.HierarchyNode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(parent, maxDepth)] = memoryEntry{node: node, storedAt: c.now()}
}

// Invalidate drops every depth entry cached for the parent.
func (c *MemoryCache) Invalidate(_ context.Context, parent model.ParentRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := parentPrefix(parent)
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

var _ HierarchyCache = (*MemoryCache)(nil)

// NopCache disables caching entirely: every Get misses. Useful in tests that
// assert on freshly computed values.
type NopCache struct{}

func (NopCache) Get(context.Context, model.ParentRef, int) (*dto.HierarchyNode, bool) {
	return nil, false
}
func (NopCache) Put(context.Context, model.ParentRef, int, *dto.HierarchyNode) {}
func (NopCache) Invalidate(context.Context, model.ParentRef)                   {}

var _ HierarchyCache = NopCache{}
