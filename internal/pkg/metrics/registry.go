package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database/Repository Metrics
var (
	// DBOperations tracks total database operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlink_db_operations_total",
			Help: "Total database operations by repository, operation, and status",
		},
		[]string{"repo", "operation", "status"},
	)

	// DBDuration tracks database operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "creatorlink_db_operation_duration_ms",
			Help:                            "Database operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBRowsAffected tracks rows affected by write operations
	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "creatorlink_db_rows_affected",
			Help:                            "Number of rows affected by database write operations",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBErrors tracks database errors by type
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlink_db_errors_total",
			Help: "Total database errors by repository, operation, and error type",
		},
		[]string{"repo", "operation", "error_type"},
	)
)

// Account Linking Metrics
var (
	// LinkAttempts counts terminal callback outcomes ("success" or a failure kind)
	LinkAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlink_link_attempts_total",
			Help: "Account-linking callbacks by terminal outcome",
		},
		[]string{"outcome"},
	)

	// LinkStarts counts authorization requests handed to the browser
	LinkStarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "creatorlink_link_starts_total",
			Help: "Authorization requests built for account linking",
		},
	)

	// IdentityResolutions tracks where the initiating user's identity came from
	IdentityResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlink_identity_resolutions_total",
			Help: "Callback identity resolutions by source (session, pending_short, pending_long, none)",
		},
		[]string{"source"},
	)

	// IdentityPolls tracks how many identity polls were needed before the session settled
	IdentityPolls = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "creatorlink_identity_polls",
			Help:    "Session identity polls per callback",
			Buckets: []float64{1, 2, 3, 5, 8},
		},
	)

	// ExchangeDuration tracks latency of the code exchange collaborator
	ExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "creatorlink_exchange_duration_ms",
			Help:                            "Authorization code exchange duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"mode", "status"},
	)

	// StatusCache tracks status display cache lookups
	StatusCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlink_status_cache_total",
			Help: "Connection status cache lookups by result (hit, miss, evict)",
		},
		[]string{"result"},
	)
)

// Outbound API Metrics
var (
	// OutboundCalls tracks calls to the exchange backend and the provider
	OutboundCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlink_outbound_calls_total",
			Help: "Total outbound API calls by target, method, route, and status code",
		},
		[]string{"target", "method", "route", "status"},
	)

	// OutboundDuration tracks outbound API call latency
	OutboundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "creatorlink_outbound_call_duration_ms",
			Help:                            "Outbound API call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"target", "method", "route"},
	)

	// OutboundErrors tracks outbound API failures by type
	OutboundErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlink_outbound_errors_total",
			Help: "Outbound API errors by target, route, and error type",
		},
		[]string{"target", "route", "error_type"},
	)
)

// HTTP/Web Handler Metrics
var (
	// HTTPRequests tracks HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlink_http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks HTTP request duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "creatorlink_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "route"},
	)

	// HTTPActiveRequests tracks active HTTP requests
	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "creatorlink_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)
)
