// Package observability provides Prometheus metrics and the liveness endpoint.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Subscription metrics
	LogNotificationsReceived prometheus.Counter
	SubscriptionAttempts     *prometheus.CounterVec

	// Detection metrics
	PoolCreationsDetected prometheus.Counter
	DuplicatesSkipped     prometheus.Counter
	InFlightHandlers      prometheus.Gauge
	LastDetection         prometheus.Gauge

	// Extraction metrics
	ExtractionsTotal  *prometheus.CounterVec
	ExtractionLatency prometheus.Histogram
	QuoteFallbacks    prometheus.Counter

	// Delivery metrics
	NotificationsTotal *prometheus.CounterVec

	// Storage metrics
	StoreErrors *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dlmm_notifier"
	}

	return &Metrics{
		LogNotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "log_notifications_received_total",
			Help:      "Total number of log notifications received from the subscription",
		}),
		SubscriptionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "attempts_total",
			Help:      "Total number of subscription attempts by outcome",
		}, []string{"status"}),

		PoolCreationsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "pool_creations_detected_total",
			Help:      "Total number of log batches containing the pool creation marker",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of signatures skipped as already seen",
		}),
		InFlightHandlers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "in_flight_handlers",
			Help:      "Number of detections currently being extracted or delivered",
		}),
		LastDetection: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "last_detection_timestamp",
			Help:      "Unix timestamp of the last detected pool creation",
		}),

		ExtractionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "total",
			Help:      "Total number of extractions by strategy and status",
		}, []string{"strategy", "status"}),
		ExtractionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "latency_seconds",
			Help:      "End-to-end extraction latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		QuoteFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "quote_fallbacks_total",
			Help:      "Total number of unknown quote mints labelled as USDC",
		}),

		NotificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Total number of notification deliveries by sink and status",
		}, []string{"sink", "status"}),

		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of storage errors by backend",
		}, []string{"backend"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordLogNotification increments the received notifications counter.
func RecordLogNotification() {
	DefaultMetrics.LogNotificationsReceived.Inc()
}

// RecordSubscriptionAttempt records a subscription attempt outcome ("ok" or "error").
func RecordSubscriptionAttempt(status string) {
	DefaultMetrics.SubscriptionAttempts.WithLabelValues(status).Inc()
}

// RecordDetection records a log batch that matched the creation marker.
func RecordDetection() {
	DefaultMetrics.PoolCreationsDetected.Inc()
	DefaultMetrics.LastDetection.Set(float64(time.Now().Unix()))
}

// RecordDuplicate records a signature skipped by deduplication.
func RecordDuplicate() {
	DefaultMetrics.DuplicatesSkipped.Inc()
}

// HandlerStarted and HandlerFinished track concurrently running detections.
func HandlerStarted() {
	DefaultMetrics.InFlightHandlers.Inc()
}

// HandlerFinished decrements the in-flight gauge.
func HandlerFinished() {
	DefaultMetrics.InFlightHandlers.Dec()
}

// RecordExtraction records an extraction outcome and its latency.
func RecordExtraction(strategy string, err error, seconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	if strategy == "" {
		strategy = "unknown"
	}
	DefaultMetrics.ExtractionsTotal.WithLabelValues(strategy, status).Inc()
	DefaultMetrics.ExtractionLatency.Observe(seconds)
}

// RecordQuoteFallback records an unknown quote mint mapped to USDC.
func RecordQuoteFallback() {
	DefaultMetrics.QuoteFallbacks.Inc()
}

// RecordNotification records a delivery attempt to sink.
func RecordNotification(sink string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.NotificationsTotal.WithLabelValues(sink, status).Inc()
}

// RecordStoreError records a failed write to a storage backend.
func RecordStoreError(backend string) {
	DefaultMetrics.StoreErrors.WithLabelValues(backend).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
