package taskmanager

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"radioqueue/internal/models"
)

// const ...
const (
	defaultMetricsNamespace = "radioqueue"
	defaultMetricsSubsystem = "task_queue"
)

// Metrics holds the Prometheus collectors of the scheduler. A nil *Metrics
// records nothing.
type Metrics struct {
	taskExecutionDuration *prometheus.HistogramVec
	tasksEnded            *prometheus.CounterVec
	retries               *prometheus.CounterVec
	pending               prometheus.Gauge
	tickDuration          prometheus.Histogram
}

func (m *Metrics) observeEnded(taskType models.TaskType, state models.TaskState, executing time.Duration) {
	if m == nil {
		return
	}
	m.taskExecutionDuration.WithLabelValues(string(taskType), state.String()).Observe(executing.Seconds())
	m.tasksEnded.WithLabelValues(string(taskType), state.String()).Inc()
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *Metrics) observeTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) observeRetry(decision models.RetryDecision) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(decision.String()).Inc()
}

// NewMetrics creates the scheduler collectors and registers them with reg
// when reg is not nil.
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) (*Metrics, error) {
	if namespace == "" {
		namespace = defaultMetricsNamespace
	}
	if subsystem == "" {
		subsystem = defaultMetricsSubsystem
	}

	m := &Metrics{
		taskExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "task_execution_duration_seconds",
				Help:      "Time tasks spent as the current task",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"task_type", "state"},
		),
		tasksEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tasks_ended_total",
				Help:      "Total number of tasks that reached an ending state",
			},
			[]string{"task_type", "state"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "connect_retries_total",
				Help:      "Total number of connect tasks re-enqueued after a failure",
			},
			[]string{"decision"},
		),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_tasks",
			Help:      "Current number of tasks waiting in the queue",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_duration_seconds",
			Help:      "Duration of one scheduler tick",
			Buckets:   []float64{.00001, .0001, .001, .01, .1},
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.taskExecutionDuration, m.tasksEnded, m.retries, m.pending, m.tickDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register scheduler metric: %w", err)
		}
	}
	return m, nil
}
