package models

import "time"

// Event types
const (
	EventTypeOrderPlaced        = "order.placed"
	EventTypeOrderStatusChanged = "order.status_changed"
	EventTypeCartChanged        = "cart.changed"
	EventTypeWishlistChanged    = "wishlist.changed"
	EventTypeProductChanged     = "product.changed"
	EventTypeReviewChanged      = "review.changed"
	EventTypeQueryCreated       = "query.created"
	EventTypeQueryAnswered      = "query.answered"
	EventTypeQueryDeleted       = "query.deleted"
)

// Row actions
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangeEvent describes a row change on one of the storefront tables
type ChangeEvent struct {
	BaseEvent
	Table  string          `json:"table"`
	Action string          `json:"action"`
	UserID string          `json:"user_id,omitempty"`
	RowID  int64           `json:"row_id,omitempty"`
	Status string          `json:"status,omitempty"`
	Items  []OrderItemData `json:"items,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
