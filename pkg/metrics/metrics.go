package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for slurmnode. promauto registers everything with
// the default registry, exposed by the API's /metrics endpoint.
var (
	// --- Submission metrics ---

	// SubmissionsTotal counts job requests accepted by the API, by backend.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slurmnode",
			Subsystem: "submissions",
			Name:      "total",
			Help:      "Total number of job submissions accepted",
		},
		[]string{"backend"},
	)

	// ExecutionsTotal counts finished executions by backend and outcome.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slurmnode",
			Subsystem: "executions",
			Name:      "total",
			Help:      "Total number of finished job executions",
		},
		[]string{"backend", "status"},
	)

	// ExecutionDuration tracks wall time per execution.
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slurmnode",
			Subsystem: "executions",
			Name:      "duration_seconds",
			Help:      "Duration of job executions in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 18), // 0.1s to ~7h
		},
		[]string{"backend"},
	)

	// --- Batch executor metrics ---

	// BatchSubmissions counts sbatch submissions.
	BatchSubmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slurmnode",
			Subsystem: "batch",
			Name:      "submissions_total",
			Help:      "Total number of jobs submitted to the batch scheduler",
		},
	)

	// AccountingPolls counts sacct status queries.
	AccountingPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slurmnode",
			Subsystem: "batch",
			Name:      "accounting_polls_total",
			Help:      "Total number of scheduler accounting queries",
		},
	)

	// --- Worker metrics ---

	// WorkerJobsRunning tracks concurrent jobs on this worker.
	WorkerJobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "slurmnode",
			Subsystem: "worker",
			Name:      "jobs_running",
			Help:      "Number of jobs currently running on this worker",
		},
	)

	// HeartbeatsSent counts registry heartbeats sent by the worker.
	HeartbeatsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slurmnode",
			Subsystem: "worker",
			Name:      "heartbeats_total",
			Help:      "Total heartbeats sent to the node registry",
		},
	)

	// --- Janitor metrics ---

	// WorkDirsSwept counts retained work directories removed by the
	// retention sweeper.
	WorkDirsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slurmnode",
			Subsystem: "janitor",
			Name:      "work_dirs_swept_total",
			Help:      "Total retained work directories removed by the sweeper",
		},
	)
)

// RecordExecution records the outcome of one finished execution.
func RecordExecution(backend, status string, durationSeconds float64) {
	ExecutionsTotal.WithLabelValues(backend, status).Inc()
	ExecutionDuration.WithLabelValues(backend).Observe(durationSeconds)
}
