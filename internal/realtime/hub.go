// Package realtime streams per-user change notifications to live clients.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Notification tells a client that a table changed and should be re-fetched.
// Count is the number of change events merged into it.
type Notification struct {
	Table     string    `json:"table"`
	EventType string    `json:"event_type"`
	RowID     int64     `json:"row_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Count     int       `json:"count"`
	At        time.Time `json:"at"`
}

// Subscriber opens a user's notification channel
type Subscriber interface {
	SubscribeUser(ctx context.Context, userID string) (*redis.PubSub, error)
}

// ErrSubscriptionClosed is returned when the Redis subscription ends before the client does
var ErrSubscriptionClosed = errors.New("realtime: subscription closed")

// Hub coalesces a user's change events into notifications
type Hub struct {
	subs   Subscriber
	window time.Duration
	logger *zap.Logger
}

// NewHub creates a hub; events for the same table within window are merged
func NewHub(subs Subscriber, window time.Duration) *Hub {
	return &Hub{subs: subs, window: window, logger: util.Named("realtime")}
}

// Stream forwards the user's notifications to out until ctx is done.
// At most one notification per table is sent per coalescing window.
func (h *Hub) Stream(ctx context.Context, userID string, out chan<- Notification) error {
	sub, err := h.subs.SubscribeUser(ctx, userID)
	if err != nil {
		return err
	}
	defer sub.Close()

	util.StreamClients.Inc()
	defer util.StreamClients.Dec()

	messages := sub.Channel()
	pending := newBatch()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-messages:
			if !ok {
				return ErrSubscriptionClosed
			}
			var event models.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Warn("Dropping malformed notification", zap.String("user_id", userID), zap.Error(err))
				continue
			}
			pending.add(&event)

			if h.window <= 0 {
				if err := h.flush(ctx, pending, out); err != nil {
					return nil
				}
				continue
			}
			if fire == nil {
				timer = time.NewTimer(h.window)
				fire = timer.C
			}

		case <-fire:
			fire = nil
			if err := h.flush(ctx, pending, out); err != nil {
				return nil
			}
		}
	}
}

func (h *Hub) flush(ctx context.Context, b *batch, out chan<- Notification) error {
	for _, n := range b.drain() {
		select {
		case out <- n:
			util.StreamNotificationsTotal.Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// batch keeps one notification per table in arrival order
type batch struct {
	order  []string
	tables map[string]*Notification
}

func newBatch() *batch {
	return &batch{tables: map[string]*Notification{}}
}

func (b *batch) add(event *models.ChangeEvent) {
	n, ok := b.tables[event.Table]
	if !ok {
		n = &Notification{Table: event.Table}
		b.tables[event.Table] = n
		b.order = append(b.order, event.Table)
	}
	n.EventType = event.EventType
	n.RowID = event.RowID
	n.Status = event.Status
	n.At = event.Timestamp
	n.Count++
}

func (b *batch) drain() []Notification {
	out := make([]Notification, 0, len(b.order))
	for _, table := range b.order {
		out = append(out, *b.tables[table])
	}
	b.order = b.order[:0]
	b.tables = map[string]*Notification{}
	return out
}
