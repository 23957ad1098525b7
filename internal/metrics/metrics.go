package metrics

import (
	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobMetrics tracks job invocations
type JobMetrics struct {
	Runs     *prometheus.CounterVec
	Rows     *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	LastRun  *prometheus.GaugeVec
}

// NewJobMetrics registers the job collectors with reg
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	factory := promauto.With(reg)

	return &JobMetrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batch_sync_job_runs_total",
				Help: "Job invocations by job name and status",
			},
			[]string{"job", "status"},
		),
		Rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batch_sync_job_rows_total",
				Help: "Rows written or reported by job name",
			},
			[]string{"job"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batch_sync_job_duration_seconds",
				Help:    "Job run time in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 4, 8),
			},
			[]string{"job"},
		),
		LastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "batch_sync_job_last_run_timestamp_seconds",
				Help: "Unix time the job last started",
			},
			[]string{"job"},
		),
	}
}

// Observe records one finished run
func (m *JobMetrics) Observe(result domain.RunResult) {
	m.Runs.WithLabelValues(result.Job, result.Status).Inc()
	m.Rows.WithLabelValues(result.Job).Add(float64(result.Rows))
	m.Duration.WithLabelValues(result.Job).Observe(result.Duration.Seconds())
	m.LastRun.WithLabelValues(result.Job).Set(float64(result.StartedAt.Unix()))
}
