//go:build integration

package cache

// Integration test against real Redis via testcontainers.
// Run with: go test -tags integration ./internal/cache/... -v

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/kentonium3/bake-tracker/internal/dto"
	"github.com/kentonium3/bake-tracker/internal/infra"
	"github.com/kentonium3/bake-tracker/internal/model"
)

func setupRedisCache(t *testing.T, ttl time.Duration) *RedisCache {
	t.Helper()
	ctx := context.Background()

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(rdURL)
	require.NoError(t, err)
	return NewRedisCache(rdb, ttl)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c := setupRedisCache(t, DefaultTTL)
	ctx := context.Background()
	parent := model.ParentRef{Kind: model.ParentAssembly, ID: uuid.New()}

	_, ok := c.Get(ctx, parent, 10)
	assert.False(t, ok)

	node := &dto.HierarchyNode{
		ComponentKind: model.ComponentKind(model.ParentAssembly),
		ComponentID:   parent.ID,
		DisplayName:   "Gift basket",
		Quantity:      decimal.NewFromInt(1),
		TotalCost:     decimal.RequireFromString("5.00"),
		Children: []dto.HierarchyNode{
			{
				ComponentKind: model.ComponentFinishedUnit,
				ComponentID:   uuid.New(),
				DisplayName:   "Cookie box",
				Quantity:      decimal.NewFromInt(2),
			},
		},
	}
	c.Put(ctx, parent, 10, node)

	got, ok := c.Get(ctx, parent, 10)
	require.True(t, ok)
	assert.Equal(t, "Gift basket", got.DisplayName)
	assert.True(t, got.TotalCost.Equal(node.TotalCost))
	require.Len(t, got.Children, 1)
	assert.Equal(t, node.Children[0].ComponentID, got.Children[0].ComponentID)

	// Depth is a separate hash field.
	_, ok = c.Get(ctx, parent, 3)
	assert.False(t, ok)
}

func TestRedisCacheInvalidateDropsAllDepths(t *testing.T) {
	c := setupRedisCache(t, DefaultTTL)
	ctx := context.Background()
	parent := model.ParentRef{Kind: model.ParentAssembly, ID: uuid.New()}
	other := model.ParentRef{Kind: model.ParentPackage, ID: uuid.New()}

	node := &dto.HierarchyNode{ComponentID: parent.ID, Quantity: decimal.NewFromInt(1)}
	c.Put(ctx, parent, 3, node)
	c.Put(ctx, parent, 10, node)
	c.Put(ctx, other, 10, node)

	c.Invalidate(ctx, parent)

	_, ok := c.Get(ctx, parent, 3)
	assert.False(t, ok)
	_, ok = c.Get(ctx, parent, 10)
	assert.False(t, ok)
	_, ok = c.Get(ctx, other, 10)
	assert.True(t, ok)
}

func TestRedisCacheTTL(t *testing.T) {
	c := setupRedisCache(t, time.Second)
	ctx := context.Background()
	parent := model.ParentRef{Kind: model.ParentAssembly, ID: uuid.New()}

	c.Put(ctx, parent, 10, &dto.HierarchyNode{ComponentID: parent.ID, Quantity: decimal.NewFromInt(1)})

	_, ok := c.Get(ctx, parent, 10)
	require.True(t, ok)

	time.Sleep(1500 * time.Millisecond)
	_, ok = c.Get(ctx, parent, 10)
	assert.False(t, ok)
}
