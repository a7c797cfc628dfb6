package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox_server/core/domain"
	"inbox_server/infra/database"
	pkgcache "inbox_server/pkg/cache"
)

func sample(class string) *domain.Classification {
	return &domain.Classification{PredictedClass: class, ConfidenceScore: 0.7, AllScores: map[string]float64{class: 0.7}}
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClassificationCache(10)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", sample("work"), time.Minute))

	got, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "work", got.PredictedClass)

	now = now.Add(2 * time.Minute)
	_, found, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, c.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClassificationCache(2)

	require.NoError(t, c.Set(ctx, "a", sample("work"), 0))
	require.NoError(t, c.Set(ctx, "b", sample("social"), 0))
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", sample("finance"), 0))

	_, foundA, _ := c.Get(ctx, "a")
	_, foundB, _ := c.Get(ctx, "b")
	_, foundC, _ := c.Get(ctx, "c")
	assert.True(t, foundA)
	assert.False(t, foundB)
	assert.True(t, foundC)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCacheOverwrite(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClassificationCache(0)

	require.NoError(t, c.Set(ctx, "k", sample("work"), 0))
	require.NoError(t, c.Set(ctx, "k", sample("security"), 0))

	got, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "security", got.PredictedClass)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheIgnoresNilResult(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClassificationCache(10)

	require.NotPanics(t, func() {
		require.NoError(t, c.Set(ctx, "k", nil, time.Minute))
	})

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, c.Len())
}

// Runs against a real server when REDIS_TEST_URL is set.
func TestRedisClassificationCache(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	client, err := database.NewRedis(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	rc := pkgcache.NewRedisCache(client)
	c := NewRedisClassificationCache(rc)
	key := "classify:test:" + uuid.NewString()
	t.Cleanup(func() { _ = rc.Delete(ctx, key) })

	_, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, key, sample("finance"), time.Minute))
	got, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sample("finance"), got)
}
