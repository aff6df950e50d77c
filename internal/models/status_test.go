package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, st)

	st, err = ParseOrderStatus("  DELIVERED ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusDelivered, st)

	_, err = ParseOrderStatus("processing")
	assert.Error(t, err)
}

func TestBadgeColor(t *testing.T) {
	cases := map[OrderStatus]string{
		OrderStatusPending:   "yellow",
		OrderStatusShipped:   "blue",
		OrderStatusDelivered: "green",
		OrderStatusCancelled: "red",
		OrderStatus("Other"): "gray",
	}
	for status, color := range cases {
		assert.Equal(t, color, status.BadgeColor(), status)
	}
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusShipped))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusShipped.CanTransitionTo(OrderStatusDelivered))
	assert.True(t, OrderStatusShipped.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusPending))

	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusDelivered))
	assert.False(t, OrderStatusDelivered.CanTransitionTo(OrderStatusPending))
	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusShipped))
	assert.True(t, OrderStatusDelivered.Terminal())
	assert.False(t, OrderStatusShipped.Terminal())
}

func TestTimeline(t *testing.T) {
	pending := Timeline(OrderStatusPending)
	assert.Equal(t, 25, pending.Progress)
	require.Len(t, pending.Stages, 4)
	assert.Equal(t, StageCompleted, pending.Stages[0].State)
	assert.Equal(t, StagePending, pending.Stages[1].State)

	shipped := Timeline(OrderStatusShipped)
	assert.Equal(t, 75, shipped.Progress)
	assert.Equal(t, StageCompleted, shipped.Stages[1].State)
	assert.Equal(t, StageInProgress, shipped.Stages[2].State)
	assert.Equal(t, StagePending, shipped.Stages[3].State)

	delivered := Timeline(OrderStatusDelivered)
	assert.Equal(t, 100, delivered.Progress)
	for _, s := range delivered.Stages {
		assert.Equal(t, StageCompleted, s.State)
	}

	cancelled := Timeline(OrderStatusCancelled)
	assert.Equal(t, 0, cancelled.Progress)
	assert.Equal(t, "red", cancelled.Badge)
	assert.Len(t, cancelled.Stages, 2)
}

func TestOrderItemLineTotal(t *testing.T) {
	item := OrderItem{Price: decimal.RequireFromString("19.99"), Quantity: 3}
	assert.True(t, decimal.RequireFromString("59.97").Equal(item.LineTotal()))
}

func TestProductPriceMarshalsAsNumber(t *testing.T) {
	raw, err := json.Marshal(Product{ID: 1, Price: decimal.RequireFromString("12.50")})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price":12.5`)
}
