package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrderStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_status_changes_total",
		Help: "Total number of order status transitions",
	}, []string{"status"})

	PlaceOrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_place_order_latency_seconds",
		Help:    "Latency of the order placement transaction",
		Buckets: prometheus.DefBuckets,
	})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"action"})

	ChangeEventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_change_events_published_total",
		Help: "Total number of change events published",
	}, []string{"event_type"})

	ChangeEventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_change_events_consumed_total",
		Help: "Total number of change events consumed",
	}, []string{"event_type", "result"})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cache_requests_total",
		Help: "Cache lookups by cache name and outcome",
	}, []string{"cache", "outcome"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_stream_clients",
		Help: "Number of connected realtime stream clients",
	})

	StreamNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_stream_notifications_total",
		Help: "Coalesced notifications delivered to stream clients",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
