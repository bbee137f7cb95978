package saga

import "time"

// MetricsRecorder receives execution telemetry from the orchestrator. The
// concrete Prometheus implementation lives outside this package so the saga
// engine stays free of collector dependencies.
type MetricsRecorder interface {
	RecordSagaStarted(workflow string)
	RecordSagaCompleted(workflow, status string, duration time.Duration)
	RecordStepExecution(workflow, step, status string, duration time.Duration)
	RecordStepRetry(workflow, step string)
	RecordCompensation(workflow, step, status string)
	SetActiveSagas(count int)
}

type nopMetrics struct{}

func (nopMetrics) RecordSagaStarted(string)                                  {}
func (nopMetrics) RecordSagaCompleted(string, string, time.Duration)         {}
func (nopMetrics) RecordStepExecution(string, string, string, time.Duration) {}
func (nopMetrics) RecordStepRetry(string, string)                            {}
func (nopMetrics) RecordCompensation(string, string, string)                 {}
func (nopMetrics) SetActiveSagas(int)                                        {}
