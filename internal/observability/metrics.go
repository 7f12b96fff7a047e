package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// Metrics holds the Prometheus collectors shared by the data client and the
// notification listeners. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec

	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec

	MessagesProcessed *prometheus.CounterVec
}

// NewMetrics returns the process-wide collector, creating it on first use.
// Lambda containers reuse it across invocations.
func NewMetrics(namespace string) *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}
	globalMetrics = newMetrics(namespace, prometheus.NewRegistry())
	return globalMetrics
}

func newMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		DBOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_operations_total",
				Help:      "Total number of DynamoDB operations",
			},
			[]string{"operation", "status"},
		),
		DBDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "DynamoDB operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		NotificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Investigation notifications sent",
			},
			[]string{"kind", "audience"},
		),
		NotificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_failed_total",
				Help:      "Investigation notifications that failed to send",
			},
			[]string{"kind", "audience"},
		),
		MessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_processed_total",
				Help:      "Queue messages processed by outcome",
			},
			[]string{"listener", "outcome"},
		),
	}

	registry.MustRegister(
		m.DBOperations,
		m.DBDuration,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.MessagesProcessed,
	)
	return m
}

// NewTestMetrics returns a collector on a private registry.
func NewTestMetrics() *Metrics {
	return newMetrics("test", prometheus.NewRegistry())
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveDB records one DynamoDB operation.
func (m *Metrics) ObserveDB(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DBOperations.WithLabelValues(operation, status).Inc()
	m.DBDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveNotification records one send attempt. audience is "provider" or "state".
func (m *Metrics) ObserveNotification(kind, audience string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.NotificationsFailed.WithLabelValues(kind, audience).Inc()
		return
	}
	m.NotificationsSent.WithLabelValues(kind, audience).Inc()
}

// ObserveMessage records the outcome of one queue message.
func (m *Metrics) ObserveMessage(listener string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.MessagesProcessed.WithLabelValues(listener, outcome).Inc()
}
