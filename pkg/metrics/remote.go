package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skylane/skylane/pkg/alert"
)

var _ alert.Notifier = (*Manager)(nil)

// initRemoteMetrics initializes remote service call and alert metrics.
func (m *Manager) initRemoteMetrics(cfg Config) {
	m.remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_calls_total",
			Help: "Total number of remote service calls by gRPC status code",
		},
		[]string{"method", "code"},
	)

	m.remoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_call_duration_seconds",
			Help:    "Remote service call duration in seconds",
			Buckets: cfg.RemoteCallBuckets,
		},
		[]string{"method"},
	)

	m.alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Total number of reconciliation alerts raised",
		},
		[]string{"type", "severity"},
	)

	m.registry.MustRegister(m.remoteCalls)
	m.registry.MustRegister(m.remoteCallDuration)
	m.registry.MustRegister(m.alerts)
}

// RecordRemoteCall records one remote service call outcome.
func (m *Manager) RecordRemoteCall(method, code string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.remoteCalls.WithLabelValues(method, code).Inc()
	m.remoteCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Notify counts an alert, letting the manager sit in an alert fan-out.
func (m *Manager) Notify(_ context.Context, a alert.Alert) {
	if !m.enabled {
		return
	}
	m.alerts.WithLabelValues(a.Type, string(a.Severity)).Inc()
}
