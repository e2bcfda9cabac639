// Package metrics holds the Prometheus collectors of the session subsystem.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric.
const Namespace = "sessiond"

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors.
type Metrics struct {
	tasksEnqueued  *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	tasksActive    prometheus.Gauge
	taskDuration   *prometheus.HistogramVec
	eventsTotal    *prometheus.CounterVec
	sessions       prometheus.Gauge
	searches       *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		tasksEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tasks_enqueued_total",
			Help:      "Total number of async tasks enqueued",
		}, []string{"task"}),

		tasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of async tasks finalized on the game thread",
		}, []string{"task", "result"}),

		tasksActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "tasks_active",
			Help:      "Number of async tasks being ticked by the worker",
		}),

		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "task_duration_seconds",
			Help:      "Time from enqueue to finalize of async tasks",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30},
		}, []string{"task"}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_total",
			Help:      "Total number of passive events delivered to the game thread",
		}, []string{"event"}),

		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_registered",
			Help:      "Number of named sessions in the registry",
		}),

		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "searches_total",
			Help:      "Total number of finished searches",
		}, []string{"kind", "result"}),
	}
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}

	return ResultFailure
}

// TaskEnqueued records a task entering the inbound queue.
func (m *Metrics) TaskEnqueued(task string) {
	if m == nil {
		return
	}

	m.tasksEnqueued.WithLabelValues(task).Inc()
}

// SetActiveTasks records the size of the worker's active set.
func (m *Metrics) SetActiveTasks(n int) {
	if m == nil {
		return
	}

	m.tasksActive.Set(float64(n))
}

// TaskCompleted records a finalized task.
func (m *Metrics) TaskCompleted(task string, ok bool, d time.Duration) {
	if m == nil {
		return
	}

	m.tasksCompleted.WithLabelValues(task, result(ok)).Inc()
	m.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

// EventDelivered records a passive event.
func (m *Metrics) EventDelivered(event string) {
	if m == nil {
		return
	}

	m.eventsTotal.WithLabelValues(event).Inc()
}

// SetSessions records the size of the registry.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}

	m.sessions.Set(float64(n))
}

// SearchFinished records a finished search of the given kind (lan, lobby or
// server).
func (m *Metrics) SearchFinished(kind string, ok bool) {
	if m == nil {
		return
	}

	m.searches.WithLabelValues(kind, result(ok)).Inc()
}
