// Package alert carries reconciliation alerts: signals that a workflow
// finished but left a known, bounded inconsistency that needs out-of-band
// resolution. Alerts are fire-and-forget; emitting one never fails the
// workflow that raised it.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Alert types raised by the delivery workflows.
const (
	TypeDroneReleaseFailed = "drone_release_failed"
	TypeCompensationFailed = "compensation_failed"
)

// Severity ranks an alert for routing.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert describes one inconsistency requiring reconciliation.
type Alert struct {
	Type      string         `json:"type"`
	Severity  Severity       `json:"severity"`
	SagaID    string         `json:"saga_id,omitempty"`
	Workflow  string         `json:"workflow,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier delivers alerts to an operator-facing channel.
type Notifier interface {
	Notify(ctx context.Context, a Alert)
}

// LogNotifier writes alerts to the structured log. It is the default sink;
// deployments route alerts further by log shipping.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier over the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the alert.
func (n *LogNotifier) Notify(ctx context.Context, a Alert) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	level := slog.LevelWarn
	if a.Severity == SeverityCritical {
		level = slog.LevelError
	}
	n.logger.LogAttrs(ctx, level, "reconciliation alert",
		slog.String("type", a.Type),
		slog.String("severity", string(a.Severity)),
		slog.String("saga_id", a.SagaID),
		slog.String("workflow", a.Workflow),
		slog.String("message", a.Message),
		slog.Any("details", a.Details),
	)
}

// FanOut forwards each alert to every notifier.
type FanOut []Notifier

// Notify delivers the alert to all members.
func (f FanOut) Notify(ctx context.Context, a Alert) {
	for _, n := range f {
		n.Notify(ctx, a)
	}
}

// Recorder captures alerts for inspection in tests.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify records the alert.
func (r *Recorder) Notify(_ context.Context, a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

// Alerts returns a copy of everything recorded so far.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}
