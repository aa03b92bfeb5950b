// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders committed by checkout",
	})

	CheckoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_failures_total",
			Help: "Rejected or failed checkouts by reason",
		},
		[]string{"reason"},
	)

	StockReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_released_units_total",
		Help: "Units returned to stock by order cancellation",
	})

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_notifications_failed_total",
			Help: "Order notifications that could not be delivered",
		},
		[]string{"transport"},
	)

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notifications_dropped_total",
		Help: "Order notifications dropped because the queue was full",
	})
)
