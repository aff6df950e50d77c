package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

const userChannelPrefix = "storefront:user:"

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return Wrap(rdb), nil
}

// Wrap builds a Client around an existing connection
func Wrap(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks connectivity for readiness probes
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func idempotencyKey(key string) string { return "idempotency:" + key }
func lockKey(key string) string        { return "lock:" + key }
func roleKey(userID uuid.UUID) string  { return "role:" + userID.String() }

// UserChannel is the pub/sub channel carrying a user's change notifications
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), value, ttl).Err()
}

// GetIdempotencyKey returns the stored value, with ok false when the key is unknown
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (value string, ok bool, err error) {
	value, err = c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, idempotencyKey(key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// AcquireLock acquires a distributed lock. The returned token must be
// presented to ReleaseLock; ok is false when another holder owns the lock.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = c.rdb.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseLock releases the lock only if it is still held with token
func (c *Client) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	result, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(key)}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("release lock script failed: %w", err)
	}
	return result == 1, nil
}

// CacheRole stores a user's role for the auth middleware
func (c *Client) CacheRole(ctx context.Context, userID uuid.UUID, role models.Role, ttl time.Duration) error {
	return c.rdb.Set(ctx, roleKey(userID), string(role), ttl).Err()
}

// CachedRole returns the cached role, with ok false on a miss
func (c *Client) CachedRole(ctx context.Context, userID uuid.UUID) (models.Role, bool, error) {
	v, err := c.rdb.Get(ctx, roleKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return models.Role(v), true, nil
}

// InvalidateRole drops the cached role of a user
func (c *Client) InvalidateRole(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.Del(ctx, roleKey(userID)).Err()
}

// PublishUserEvent sends payload to the user's notification channel
func (c *Client) PublishUserEvent(ctx context.Context, userID string, payload []byte) error {
	return c.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// SubscribeUser subscribes to the user's notification channel.
// The subscription is confirmed before returning.
func (c *Client) SubscribeUser(ctx context.Context, userID string) (*redis.PubSub, error) {
	sub := c.rdb.Subscribe(ctx, UserChannel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", UserChannel(userID), err)
	}
	return sub, nil
}
