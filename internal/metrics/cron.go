package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(cronRuns, digestEmails, retentionDeleted)
}

var (
	cronRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_cron_runs_total",
			Help: "Batch driver runs by driver and result.",
		},
		[]string{"driver", "result"},
	)

	digestEmails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_digest_emails_total",
			Help: "Digest emails by frequency and result (sent/failed).",
		},
		[]string{"frequency", "result"},
	)

	retentionDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_retention_records_deleted_total",
			Help: "Records removed by retention tasks.",
		},
		[]string{"task"},
	)
)

// CronRun records one driver invocation; result is e.g. "ok", "error", "duplicate".
func CronRun(driver, result string) {
	cronRuns.WithLabelValues(norm(driver), norm(result)).Inc()
}

func DigestEmails(frequency string, sent, failed int) {
	digestEmails.WithLabelValues(norm(frequency), "sent").Add(float64(sent))
	digestEmails.WithLabelValues(norm(frequency), "failed").Add(float64(failed))
}

func RetentionDeleted(task string, n int) {
	if n > 0 {
		retentionDeleted.WithLabelValues(norm(task)).Add(float64(n))
	}
}
