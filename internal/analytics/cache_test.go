package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client, time.Minute)
}

type payload struct {
	Value int `json:"value"`
}

func TestCacheFetchJSONUsesCache(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "dashboard", "admin")
	require.NoError(t, err)
	assert.Equal(t, "dashboard:admin:1", key)

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return payload{Value: calls}, nil
	}

	var first, second payload
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, second.Value)
}

func TestCacheBumpChangesKey(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "dashboard")
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))
	after, err := cache.BuildKey(ctx, "dashboard")
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
	assert.Equal(t, "dashboard:2", after)
}

func TestCacheWithoutClientLoadsDirectly(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a:b", key)

	var out payload
	require.NoError(t, cache.FetchJSON(ctx, key, &out, func(context.Context) (interface{}, error) {
		return payload{Value: 7}, nil
	}))
	assert.Equal(t, 7, out.Value)
	assert.NoError(t, cache.Bump(ctx))
}

func TestCacheLoaderErrorPropagates(t *testing.T) {
	cache := newTestCache(t)
	boom := errors.New("boom")

	var out payload
	err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
