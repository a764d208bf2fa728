package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Security metrics
	CSRFValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csrf_validation_failures_total",
			Help: "Total number of rejected CSRF validations",
		},
		[]string{"reason"},
	)

	CSRFTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "csrf_tokens_issued_total",
			Help: "Total number of CSRF tokens minted",
		},
	)

	PaymentTokensMinted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_tokens_minted_total",
			Help: "Total number of payment tokens minted",
		},
	)

	PaymentTokensRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_tokens_rejected_total",
			Help: "Total number of rejected payment token validations",
		},
	)

	// Session lifecycle metrics
	SessionTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_timeouts_total",
			Help: "Total number of sessions signed out for inactivity",
		},
	)

	SessionWarningsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_warnings_issued_total",
			Help: "Total number of inactivity warnings pushed to clients",
		},
	)

	ActivityConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_activity_connections_active",
			Help: "Number of active session-activity WebSocket connections",
		},
	)

	// Order pipeline metrics
	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total number of orders accepted at checkout",
		},
		[]string{"currency"},
	)

	OrderEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_consumed_total",
			Help: "Total number of order events processed by the worker",
		},
		[]string{"outcome"},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"operation", "table"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)
