package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsEnqueued, jobsFinished, jobDurationSeconds, jobsRequeued)
}

var (
	jobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_jobs_enqueued_total",
			Help: "Jobs enqueued by type.",
		},
		[]string{"type"},
	)

	jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_jobs_finished_total",
			Help: "Jobs that reached a terminal state, by type and state.",
		},
		[]string{"type", "state"},
	)

	jobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stories_job_duration_seconds",
			Help:    "Handler run time per job type.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"type"},
	)

	jobsRequeued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stories_jobs_requeued_total",
			Help: "Stale active jobs returned to waiting.",
		},
	)
)

func JobEnqueued(jobType string) {
	jobsEnqueued.WithLabelValues(norm(jobType)).Inc()
}

// JobFinished records a terminal state and the handler run time.
func JobFinished(jobType, state string, elapsed time.Duration) {
	jobsFinished.WithLabelValues(norm(jobType), norm(state)).Inc()
	jobDurationSeconds.WithLabelValues(norm(jobType)).Observe(elapsed.Seconds())
}

func JobsRequeued(n int64) {
	if n > 0 {
		jobsRequeued.Add(float64(n))
	}
}
