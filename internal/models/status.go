package models

import (
	"fmt"
	"strings"
)

// OrderStatus is the fulfilment state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// OrderStatuses lists every status in lifecycle order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus accepts any casing of a known status
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range OrderStatuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// BadgeColor returns the colour used to render the status badge
func (s OrderStatus) BadgeColor() string {
	switch s {
	case OrderStatusPending:
		return "yellow"
	case OrderStatusShipped:
		return "blue"
	case OrderStatusDelivered:
		return "green"
	case OrderStatusCancelled:
		return "red"
	default:
		return "gray"
	}
}

// Terminal reports whether no further transitions are possible
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered, OrderStatusCancelled},
}

// CanTransitionTo reports whether the status may move to next.
// Re-applying the current status is allowed and is a no-op.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Stage states used by the order timeline
const (
	StageCompleted  = "completed"
	StageInProgress = "in_progress"
	StagePending    = "pending"
)

// TimelineStage is one step of the customer-facing order progress
type TimelineStage struct {
	Label string `json:"label"`
	State string `json:"state"`
}

// OrderTimeline summarises order progress for display
type OrderTimeline struct {
	Status   OrderStatus     `json:"status"`
	Badge    string          `json:"badge"`
	Progress int             `json:"progress"`
	Stages   []TimelineStage `json:"stages"`
}

// Timeline builds the four-stage progress view for status
func Timeline(status OrderStatus) OrderTimeline {
	t := OrderTimeline{Status: status, Badge: status.BadgeColor()}

	if status == OrderStatusCancelled {
		t.Stages = []TimelineStage{
			{Label: "Order Placed", State: StageCompleted},
			{Label: "Cancelled", State: StageCompleted},
		}
		return t
	}

	packaging, shipping, delivered := StagePending, StagePending, StagePending
	switch status {
	case OrderStatusPending:
		t.Progress = 25
	case OrderStatusShipped:
		packaging, shipping = StageCompleted, StageInProgress
		t.Progress = 75
	case OrderStatusDelivered:
		packaging, shipping, delivered = StageCompleted, StageCompleted, StageCompleted
		t.Progress = 100
	}

	t.Stages = []TimelineStage{
		{Label: "Order Placed", State: StageCompleted},
		{Label: "Packaging", State: packaging},
		{Label: "Shipping", State: shipping},
		{Label: "Delivered", State: delivered},
	}
	return t
}
