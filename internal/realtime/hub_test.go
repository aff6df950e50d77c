package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) *redisclient.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return redisclient.Wrap(rdb)
}

func send(t *testing.T, rc *redisclient.Client, userID string, e models.ChangeEvent) {
	t.Helper()
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	require.NoError(t, rc.PublishUserEvent(context.Background(), userID, raw))
}

// waitSubscribed blocks until the hub's subscription is registered
func waitSubscribed(t *testing.T, rc *redisclient.Client, userID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		counts, err := rc.GetClient().PubSubNumSub(context.Background(), redisclient.UserChannel(userID)).Result()
		return err == nil && counts[redisclient.UserChannel(userID)] > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamCoalescesPerTable(t *testing.T) {
	rc := newClient(t)
	hub := NewHub(rc, 100*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Notification, 8)
	done := make(chan error, 1)
	go func() { done <- hub.Stream(ctx, "u1", out) }()
	waitSubscribed(t, rc, "u1")

	for i := int64(1); i <= 3; i++ {
		send(t, rc, "u1", models.ChangeEvent{
			BaseEvent: models.BaseEvent{EventType: models.EventTypeCartChanged},
			Table:     "cart",
			RowID:     i,
		})
	}
	send(t, rc, "u1", models.ChangeEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderStatusChanged},
		Table:     "orders",
		RowID:     42,
		Status:    "Shipped",
	})

	var got []Notification
	for len(got) < 2 {
		select {
		case n := <-out:
			got = append(got, n)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notifications, got %d", len(got))
		}
	}

	assert.Equal(t, "cart", got[0].Table)
	assert.Equal(t, 3, got[0].Count)
	assert.Equal(t, int64(3), got[0].RowID)
	assert.Equal(t, "orders", got[1].Table)
	assert.Equal(t, "Shipped", got[1].Status)
	assert.Equal(t, 1, got[1].Count)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestStreamWithoutWindowForwardsImmediately(t *testing.T) {
	rc := newClient(t)
	hub := NewHub(rc, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Notification, 4)
	go func() { _ = hub.Stream(ctx, "u2", out) }()
	waitSubscribed(t, rc, "u2")

	send(t, rc, "u2", models.ChangeEvent{Table: "wishlist", BaseEvent: models.BaseEvent{EventType: models.EventTypeWishlistChanged}})

	select {
	case n := <-out:
		assert.Equal(t, "wishlist", n.Table)
		assert.Equal(t, 1, n.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}
}

func TestStreamIgnoresOtherUsers(t *testing.T) {
	rc := newClient(t)
	hub := NewHub(rc, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Notification, 4)
	go func() { _ = hub.Stream(ctx, "u3", out) }()
	waitSubscribed(t, rc, "u3")

	send(t, rc, "someone-else", models.ChangeEvent{Table: "cart"})

	select {
	case n := <-out:
		t.Fatalf("unexpected notification %+v", n)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestBatchDrainResets(t *testing.T) {
	b := newBatch()
	b.add(&models.ChangeEvent{Table: "cart"})
	b.add(&models.ChangeEvent{Table: "cart"})
	first := b.drain()
	require.Len(t, first, 1)
	assert.Equal(t, 2, first[0].Count)
	assert.Empty(t, b.drain())
}
