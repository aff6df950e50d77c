package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// EventLog records which change events were already applied
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// SalesCounter maintains the derived sales_count of products
type SalesCounter interface {
	IncrementSalesCount(ctx context.Context, productID int64, qty int) error
}

// CacheBumper invalidates the dashboard cache
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// UserNotifier fans a payload out to a user's live connections
type UserNotifier interface {
	PublishUserEvent(ctx context.Context, userID string, payload []byte) error
}

// MessageSource is a change-feed subscription
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// ChangeFeedWorker applies change events to derived data and notifies users
type ChangeFeedWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	events       EventLog
	sales        SalesCounter
	cache        CacheBumper
	notifier     UserNotifier
	logger       *zap.Logger
}

// NewChangeFeedWorker creates a new change feed worker
func NewChangeFeedWorker(consumer MessageSource, events EventLog, sales SalesCounter, cache CacheBumper, notifier UserNotifier) *ChangeFeedWorker {
	w := &ChangeFeedWorker{
		consumer: consumer,
		events:   events,
		sales:    sales,
		cache:    cache,
		notifier: notifier,
		logger:   util.Named("change-feed"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnAny(w.HandleEvent)
	w.eventHandler = eventHandler
	return w
}

// Start consumes the change feed until ctx is cancelled
func (w *ChangeFeedWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting change feed worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the underlying consumer
func (w *ChangeFeedWorker) Stop() error {
	w.logger.Info("Stopping change feed worker")
	return w.consumer.Close()
}

// HandleEvent applies one change event. Events already recorded in the
// event log are skipped so redelivery does not double count sales.
func (w *ChangeFeedWorker) HandleEvent(ctx context.Context, event *models.ChangeEvent) error {
	ctx, span := util.StartSpan(ctx, "ChangeFeedWorker.HandleEvent")
	defer span.End()

	if event.EventID != "" {
		done, err := w.events.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			util.ChangeEventsConsumedTotal.WithLabelValues(event.EventType, "error").Inc()
			return fmt.Errorf("check processed event: %w", err)
		}
		if done {
			w.logger.Debug("Event already processed", zap.String("event_id", event.EventID))
			util.ChangeEventsConsumedTotal.WithLabelValues(event.EventType, "duplicate").Inc()
			return nil
		}
	}

	if event.EventType == models.EventTypeOrderPlaced {
		for _, item := range event.Items {
			if err := w.sales.IncrementSalesCount(ctx, item.ProductID, item.Quantity); err != nil {
				util.ChangeEventsConsumedTotal.WithLabelValues(event.EventType, "error").Inc()
				return fmt.Errorf("increment sales count of product %d: %w", item.ProductID, err)
			}
		}
	}

	if event.EventID != "" {
		if err := w.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
			util.ChangeEventsConsumedTotal.WithLabelValues(event.EventType, "error").Inc()
			return fmt.Errorf("mark event processed: %w", err)
		}
	}

	// Side effects below are best effort; the event is already applied.
	if affectsDashboard(event) && w.cache != nil {
		if err := w.cache.Bump(ctx); err != nil {
			w.logger.Warn("Failed to bump dashboard cache", zap.Error(err))
		}
	}
	if event.UserID != "" && w.notifier != nil {
		w.notify(ctx, event)
	}

	util.ChangeEventsConsumedTotal.WithLabelValues(event.EventType, "ok").Inc()
	return nil
}

func affectsDashboard(event *models.ChangeEvent) bool {
	return strings.HasPrefix(event.EventType, "order.") || event.EventType == models.EventTypeProductChanged
}

func (w *ChangeFeedWorker) notify(ctx context.Context, event *models.ChangeEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		w.logger.Error("Failed to encode notification", zap.Error(err))
		return
	}
	if err := w.notifier.PublishUserEvent(ctx, event.UserID, payload); err != nil {
		w.logger.Warn("Failed to notify user",
			zap.String("user_id", event.UserID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}
