// Package analytics aggregates orders and inventory for the dashboards.
package analytics

import (
	"sort"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// OrderMetrics are the headline numbers of the admin dashboard.
// Revenue and AverageOrderValue cover every order; NetRevenue leaves out cancelled ones.
type OrderMetrics struct {
	Revenue           decimal.Decimal `json:"revenue"`
	NetRevenue        decimal.Decimal `json:"net_revenue"`
	OrderCount        int             `json:"order_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	PendingCount      int             `json:"pending_count"`
	CancelledCount    int             `json:"cancelled_count"`
}

func Metrics(orders []models.Order) OrderMetrics {
	m := OrderMetrics{Revenue: decimal.Zero, NetRevenue: decimal.Zero, AverageOrderValue: decimal.Zero}
	for _, o := range orders {
		m.OrderCount++
		m.Revenue = m.Revenue.Add(o.TotalPrice)
		switch o.Status {
		case models.OrderStatusCancelled:
			m.CancelledCount++
			continue
		case models.OrderStatusPending:
			m.PendingCount++
		}
		m.NetRevenue = m.NetRevenue.Add(o.TotalPrice)
	}
	if m.OrderCount > 0 {
		m.AverageOrderValue = m.Revenue.Div(decimal.NewFromInt(int64(m.OrderCount))).Round(2)
	}
	return m
}

// CategoryBreakdown sums price times quantity per category, largest first
func CategoryBreakdown(items []models.OrderItem) []models.CategoryValue {
	totals := map[string]decimal.Decimal{}
	for _, it := range items {
		totals[it.Category] = totals[it.Category].Add(it.LineTotal())
	}
	return sortedValues(totals)
}

// CategoryInventoryValue sums price times stock per category, largest first
func CategoryInventoryValue(products []models.Product) []models.CategoryValue {
	totals := map[string]decimal.Decimal{}
	for _, p := range products {
		totals[p.Category] = totals[p.Category].Add(p.Price.Mul(decimal.NewFromInt(int64(p.Stock))))
	}
	return sortedValues(totals)
}

func sortedValues(totals map[string]decimal.Decimal) []models.CategoryValue {
	out := make([]models.CategoryValue, 0, len(totals))
	for category, v := range totals {
		out = append(out, models.CategoryValue{Category: category, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Value.Cmp(out[j].Value); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// RevenueByDay buckets order totals by calendar day in loc,
// oldest first, keeping only the most recent lastN days that had orders.
func RevenueByDay(orders []models.Order, loc *time.Location, lastN int) []models.DailyRevenue {
	if loc == nil {
		loc = time.UTC
	}
	byDay := map[string]decimal.Decimal{}
	for _, o := range orders {
		day := o.CreatedAt.In(loc).Format("2006-01-02")
		byDay[day] = byDay[day].Add(o.TotalPrice)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	if lastN > 0 && len(days) > lastN {
		days = days[len(days)-lastN:]
	}

	out := make([]models.DailyRevenue, 0, len(days))
	for _, day := range days {
		out = append(out, models.DailyRevenue{Date: day, Revenue: byDay[day]})
	}
	return out
}
