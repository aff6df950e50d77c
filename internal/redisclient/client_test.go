package redisclient

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return Wrap(rdb), mr
}

func TestIdempotencyKey(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.GetIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetIdempotencyKey(ctx, "k1", "42", time.Minute))

	v, ok, err := c.GetIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	exists, err := c.CheckIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)

	mr.FastForward(2 * time.Minute)
	exists, err = c.CheckIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLockOnlyReleasedByHolder(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	token, ok, err := c.AcquireLock(ctx, "checkout:u1", time.Second*10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = c.AcquireLock(ctx, "checkout:u1", time.Second*10)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := c.ReleaseLock(ctx, "checkout:u1", "someone-else")
	require.NoError(t, err)
	assert.False(t, released)
	assert.True(t, mr.Exists("lock:checkout:u1"))

	released, err = c.ReleaseLock(ctx, "checkout:u1", token)
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists("lock:checkout:u1"))
}

func TestRoleCache(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	user := uuid.New()

	_, ok, err := c.CachedRole(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.CacheRole(ctx, user, models.RoleAdmin, time.Minute))
	role, ok, err := c.CachedRole(ctx, user)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.RoleAdmin, role)

	require.NoError(t, c.InvalidateRole(ctx, user))
	_, ok, err = c.CachedRole(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPublishSubscribeUser(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	sub, err := c.SubscribeUser(ctx, "u1")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, c.PublishUserEvent(ctx, "u1", []byte(`{"table":"cart"}`)))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "storefront:user:u1", msg.Channel)
		assert.JSONEq(t, `{"table":"cart"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
