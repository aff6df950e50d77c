package analytics

import (
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func order(total string, status models.OrderStatus, at time.Time) models.Order {
	return models.Order{TotalPrice: dec(total), Status: status, CreatedAt: at}
}

func TestMetrics(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	m := Metrics([]models.Order{
		order("100.00", models.OrderStatusPending, now),
		order("50.00", models.OrderStatusDelivered, now),
		order("25.00", models.OrderStatusShipped, now),
		order("999.00", models.OrderStatusCancelled, now),
	})

	assert.True(t, dec("1174").Equal(m.Revenue))
	assert.True(t, dec("175").Equal(m.NetRevenue))
	assert.Equal(t, 4, m.OrderCount)
	assert.True(t, dec("293.5").Equal(m.AverageOrderValue), m.AverageOrderValue.String())
	assert.Equal(t, 1, m.PendingCount)
	assert.Equal(t, 1, m.CancelledCount)
}

func TestMetricsIncludesCancelledInRevenue(t *testing.T) {
	now := time.Now()
	m := Metrics([]models.Order{
		order("100", models.OrderStatusDelivered, now),
		order("50", models.OrderStatusCancelled, now),
	})

	assert.True(t, dec("150").Equal(m.Revenue))
	assert.True(t, dec("75").Equal(m.AverageOrderValue), m.AverageOrderValue.String())
	assert.True(t, dec("100").Equal(m.NetRevenue))
	assert.Equal(t, 2, m.OrderCount)
}

func TestMetricsEmpty(t *testing.T) {
	m := Metrics(nil)
	assert.True(t, m.Revenue.IsZero())
	assert.True(t, m.AverageOrderValue.IsZero())
	assert.True(t, m.NetRevenue.IsZero())
	assert.Zero(t, m.OrderCount)
}

func TestCategoryBreakdown(t *testing.T) {
	got := CategoryBreakdown([]models.OrderItem{
		{Category: "Books", Price: dec("10"), Quantity: 2},
		{Category: "Toys", Price: dec("5"), Quantity: 4},
		{Category: "Audio", Price: dec("100"), Quantity: 1},
		{Category: "Books", Price: dec("1.50"), Quantity: 2},
	})

	require.Len(t, got, 3)
	assert.Equal(t, "Audio", got[0].Category)
	assert.Equal(t, "Books", got[1].Category)
	assert.True(t, dec("23").Equal(got[1].Value))
	assert.Equal(t, "Toys", got[2].Category)
}

func TestCategoryBreakdownTiesByName(t *testing.T) {
	got := CategoryBreakdown([]models.OrderItem{
		{Category: "Zeta", Price: dec("10"), Quantity: 1},
		{Category: "Alpha", Price: dec("10"), Quantity: 1},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha", got[0].Category)
}

func TestCategoryInventoryValue(t *testing.T) {
	got := CategoryInventoryValue([]models.Product{
		{Category: "Books", Price: dec("10"), Stock: 3},
		{Category: "Books", Price: dec("2"), Stock: 0},
		{Category: "Toys", Price: dec("4"), Stock: 10},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Toys", got[0].Category)
	assert.True(t, dec("40").Equal(got[0].Value))
	assert.True(t, dec("30").Equal(got[1].Value))
}

func TestRevenueByDay(t *testing.T) {
	day := func(d int, hour int) time.Time {
		return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
	}
	orders := []models.Order{
		order("10", models.OrderStatusPending, day(3, 10)),
		order("5", models.OrderStatusDelivered, day(1, 9)),
		order("7", models.OrderStatusShipped, day(3, 23)),
		order("100", models.OrderStatusCancelled, day(2, 9)),
		order("1", models.OrderStatusPending, day(2, 9)),
	}

	got := RevenueByDay(orders, time.UTC, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-02", got[0].Date)
	assert.True(t, dec("101").Equal(got[0].Revenue))
	assert.Equal(t, "2024-03-03", got[1].Date)
	assert.True(t, dec("17").Equal(got[1].Revenue))

	east := time.FixedZone("UTC+2", 2*3600)
	shifted := RevenueByDay(orders, east, 0)
	require.Len(t, shifted, 4)
	assert.Equal(t, "2024-03-04", shifted[3].Date)
}
