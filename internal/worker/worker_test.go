package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/analytics"
	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memEvents struct {
	mu        sync.Mutex
	processed map[string]string
	sales     map[int64]int
	salesErr  error
}

func newMemEvents() *memEvents {
	return &memEvents{processed: map[string]string{}, sales: map[int64]int{}}
}

func (m *memEvents) IsEventProcessed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[id]
	return ok, nil
}

func (m *memEvents) MarkEventProcessed(_ context.Context, id, typ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[id] = typ
	return nil
}

func (m *memEvents) IncrementSalesCount(_ context.Context, productID int64, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.salesErr != nil {
		return m.salesErr
	}
	m.sales[productID] += qty
	return nil
}

type idleSource struct{ closed bool }

func (s *idleSource) StartConsuming(ctx context.Context, _ broker.MessageHandler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *idleSource) Close() error {
	s.closed = true
	return nil
}

func setup(t *testing.T) (*ChangeFeedWorker, *memEvents, *analytics.Cache, *redisclient.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	events := newMemEvents()
	cache := analytics.NewCache(rdb, time.Minute)
	rc := redisclient.Wrap(rdb)
	return NewChangeFeedWorker(&idleSource{}, events, events, cache, rc), events, cache, rc
}

func orderPlaced(id string) *models.ChangeEvent {
	return &models.ChangeEvent{
		BaseEvent: models.BaseEvent{EventID: id, EventType: models.EventTypeOrderPlaced},
		Table:     "orders",
		Action:    models.ActionInsert,
		UserID:    "user-1",
		RowID:     7,
		Items: []models.OrderItemData{
			{ProductID: 1, Quantity: 2},
			{ProductID: 3, Quantity: 1},
		},
	}
}

func TestOrderPlacedUpdatesSalesOnce(t *testing.T) {
	w, events, cache, _ := setup(t)
	ctx := context.Background()

	before, err := cache.Version(ctx)
	require.NoError(t, err)

	require.NoError(t, w.HandleEvent(ctx, orderPlaced("evt-1")))
	require.NoError(t, w.HandleEvent(ctx, orderPlaced("evt-1")))

	assert.Equal(t, map[int64]int{1: 2, 3: 1}, events.sales)
	assert.Equal(t, models.EventTypeOrderPlaced, events.processed["evt-1"])

	after, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestFailedSalesUpdateIsRetried(t *testing.T) {
	w, events, _, _ := setup(t)
	events.salesErr = errors.New("db down")

	err := w.HandleEvent(context.Background(), orderPlaced("evt-2"))
	assert.Error(t, err)
	assert.NotContains(t, events.processed, "evt-2")
}

func TestUserEventsAreFannedOut(t *testing.T) {
	w, _, cache, rc := setup(t)
	ctx := context.Background()

	sub, err := rc.SubscribeUser(ctx, "user-9")
	require.NoError(t, err)
	defer sub.Close()

	before, err := cache.Version(ctx)
	require.NoError(t, err)

	event := &models.ChangeEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-3", EventType: models.EventTypeCartChanged},
		Table:     "cart",
		Action:    models.ActionInsert,
		UserID:    "user-9",
		RowID:     11,
	}
	require.NoError(t, w.HandleEvent(ctx, event))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var got models.ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "cart", got.Table)
	assert.Equal(t, int64(11), got.RowID)

	after, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStartStop(t *testing.T) {
	source := &idleSource{}
	w := NewChangeFeedWorker(source, newMemEvents(), newMemEvents(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.Start(ctx), context.Canceled)
	require.NoError(t, w.Stop())
	assert.True(t, source.closed)
}
