package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skylane/skylane/pkg/saga"
)

var _ saga.MetricsRecorder = (*Manager)(nil)

// initSagaMetrics initializes saga and step metrics.
func (m *Manager) initSagaMetrics(cfg Config) {
	m.sagaStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_started_total",
			Help: "Total number of saga executions started",
		},
		[]string{"workflow"},
	)

	m.sagaCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_completed_total",
			Help: "Total number of saga executions reaching a terminal state",
		},
		[]string{"workflow", "status"},
	)

	m.sagaDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saga_duration_seconds",
			Help:    "Saga execution duration in seconds",
			Buckets: cfg.SagaDurationBuckets,
		},
		[]string{"workflow", "status"},
	)

	m.sagaActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "saga_active_count",
			Help: "Current number of in-flight saga executions",
		},
	)

	m.stepExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_step_executions_total",
			Help: "Total number of step executions by outcome",
		},
		[]string{"workflow", "step", "status"},
	)

	m.stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saga_step_duration_seconds",
			Help:    "Step execution duration in seconds",
			Buckets: cfg.StepDurationBuckets,
		},
		[]string{"workflow", "step"},
	)

	m.stepRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_step_retries_total",
			Help: "Total number of step retry attempts",
		},
		[]string{"workflow", "step"},
	)

	m.compensations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Total number of compensations executed by outcome",
		},
		[]string{"workflow", "step", "status"},
	)

	m.registry.MustRegister(m.sagaStarted)
	m.registry.MustRegister(m.sagaCompleted)
	m.registry.MustRegister(m.sagaDuration)
	m.registry.MustRegister(m.sagaActive)
	m.registry.MustRegister(m.stepExecutions)
	m.registry.MustRegister(m.stepDuration)
	m.registry.MustRegister(m.stepRetries)
	m.registry.MustRegister(m.compensations)
}

// RecordSagaStarted records the start of a saga execution.
func (m *Manager) RecordSagaStarted(workflow string) {
	if !m.enabled {
		return
	}
	m.sagaStarted.WithLabelValues(workflow).Inc()
}

// RecordSagaCompleted records a saga reaching a terminal state.
func (m *Manager) RecordSagaCompleted(workflow, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.sagaCompleted.WithLabelValues(workflow, status).Inc()
	m.sagaDuration.WithLabelValues(workflow, status).Observe(duration.Seconds())
}

// RecordStepExecution records one step execution outcome.
func (m *Manager) RecordStepExecution(workflow, step, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.stepExecutions.WithLabelValues(workflow, step, status).Inc()
	m.stepDuration.WithLabelValues(workflow, step).Observe(duration.Seconds())
}

// RecordStepRetry records one step retry attempt.
func (m *Manager) RecordStepRetry(workflow, step string) {
	if !m.enabled {
		return
	}
	m.stepRetries.WithLabelValues(workflow, step).Inc()
}

// RecordCompensation records one compensation outcome.
func (m *Manager) RecordCompensation(workflow, step, status string) {
	if !m.enabled {
		return
	}
	m.compensations.WithLabelValues(workflow, step, status).Inc()
}

// SetActiveSagas sets the current number of in-flight sagas.
func (m *Manager) SetActiveSagas(count int) {
	if !m.enabled {
		return
	}
	m.sagaActive.Set(float64(count))
}
