package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter is the part of Producer used by EventPublisher
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher publishes change events to the change feed
type EventPublisher struct {
	producer EventWriter
	now      func() time.Time
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer EventWriter) *EventPublisher {
	return &EventPublisher{producer: producer, now: time.Now}
}

// Publish stamps the event with an id and timestamp and writes it keyed by user,
// so all changes of one user land on one partition in order.
func (ep *EventPublisher) Publish(ctx context.Context, event *models.ChangeEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = ep.now().UTC()
	}

	key := event.UserID
	if key == "" {
		key = fmt.Sprintf("%s-%d", event.Table, event.RowID)
	}

	if err := ep.producer.PublishEvent(ctx, key, event); err != nil {
		return err
	}
	util.ChangeEventsPublishedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

// NopPublisher drops events; used when Kafka is disabled
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *models.ChangeEvent) error { return nil }

// ChangeHandler processes one decoded change event
type ChangeHandler func(context.Context, *models.ChangeEvent) error

// EventHandler routes incoming change events by type
type EventHandler struct {
	handlers map[string]ChangeHandler
	fallback ChangeHandler
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: map[string]ChangeHandler{},
		logger:   util.Named("event-handler"),
	}
}

// On registers a handler for an event type
func (eh *EventHandler) On(eventType string, handler ChangeHandler) {
	eh.handlers[eventType] = handler
}

// OnAny registers the handler used for event types without a specific one
func (eh *EventHandler) OnAny(handler ChangeHandler) {
	eh.fallback = handler
}

// HandleMessage decodes msg and routes it to the matching handler
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// poison message; dropping it keeps the partition moving
		eh.logger.Error("Failed to unmarshal change event", zap.ByteString("key", msg.Key), zap.Error(err))
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", event.EventType),
		zap.String("event_id", event.EventID))

	handler, ok := eh.handlers[event.EventType]
	if !ok {
		handler = eh.fallback
	}
	if handler == nil {
		eh.logger.Warn("Unhandled event type", zap.String("event_type", event.EventType))
		return nil
	}
	return handler(ctx, &event)
}
