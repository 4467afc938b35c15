// Package metrics exposes the engine's Prometheus instrumentation:
// scheduler throughput and stealing activity, DAG step-state
// transitions, job completion latency and arena page churn.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TasksSubmitted counts every task handed to the scheduler, by kind.
	TasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryrt_tasks_submitted_total",
			Help: "Total tasks submitted to the scheduler, by kind.",
		},
		[]string{"kind"},
	)

	// TasksStolen counts tasks a worker picked up from another worker's
	// local queue rather than its own.
	TasksStolen = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queryrt_tasks_stolen_total",
			Help: "Total tasks executed after being stolen from another worker's queue.",
		},
	)

	// TasksParked counts how many times a worker suspended waiting for
	// work after exhausting its steal attempts.
	TasksParked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queryrt_worker_parks_total",
			Help: "Total times a worker suspended after exhausting its steal attempts.",
		},
	)

	// StickyEnforced counts sticky tasks rerouted to a transaction's
	// already-bound worker instead of the caller's preferred worker.
	StickyEnforced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queryrt_sticky_enforced_total",
			Help: "Total sticky tasks rerouted to a transaction's bound worker.",
		},
	)

	// WorkerQueueDepth reports each worker's local queue length.
	WorkerQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queryrt_worker_queue_depth",
			Help: "Current length of a worker's local task queue.",
		},
		[]string{"worker"},
	)

	// WatcherEvaluations counts conditional-task guard checks run by the
	// watcher loop, partitioned by outcome.
	WatcherEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryrt_watcher_evaluations_total",
			Help: "Total conditional-task guard evaluations, by outcome.",
		},
		[]string{"outcome"},
	)

	// StepTransitions counts DAG step-state transitions, by target state.
	StepTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryrt_step_transitions_total",
			Help: "Total DAG step-state transitions, by resulting state.",
		},
		[]string{"state"},
	)

	// JobsActive reports the number of jobs currently registered with
	// the scheduler.
	JobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "queryrt_jobs_active",
			Help: "Number of jobs currently registered with the scheduler.",
		},
	)

	// JobCompletionDuration observes wall-clock time from job
	// registration to Finish.
	JobCompletionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queryrt_job_completion_duration_seconds",
			Help:    "Duration from job registration to completion.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TaskExecutionDuration observes the time a single task spends
	// inside Task.Run.
	TaskExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queryrt_task_execution_duration_seconds",
			Help:    "Duration of a single Task.Run call, by kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// ArenaPagesAllocated counts pages taken out of the arena pool.
	ArenaPagesAllocated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queryrt_arena_pages_allocated_total",
			Help: "Total arena pages allocated from the pool.",
		},
	)

	// ArenaPagesReleased counts pages returned to the arena pool.
	ArenaPagesReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queryrt_arena_pages_released_total",
			Help: "Total arena pages released back to the pool.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TasksSubmitted,
		TasksStolen,
		TasksParked,
		StickyEnforced,
		WorkerQueueDepth,
		WatcherEvaluations,
		StepTransitions,
		JobsActive,
		JobCompletionDuration,
		TaskExecutionDuration,
		ArenaPagesAllocated,
		ArenaPagesReleased,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec
// with the given labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
