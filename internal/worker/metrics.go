package worker

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsClaimed counts jobs this process claimed from the queue.
	JobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queuectl_jobs_claimed_total",
		Help: "The total number of jobs claimed by this worker process",
	})

	// ClaimErrors counts failed claim attempts, busy-store retries included.
	ClaimErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queuectl_claim_errors_total",
		Help: "The total number of failed claim attempts",
	})

	// JobsProcessed counts settled executions by outcome.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queuectl_jobs_processed_total",
		Help: "The total number of settled job executions",
	}, []string{"outcome"}) // outcome: completed, retried, dead

	// JobDuration observes the wall-clock duration of command executions.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "queuectl_job_duration_seconds",
		Help:    "Duration of job command executions.",
		Buckets: prometheus.DefBuckets,
	})
)

// StartMetricsServer runs an HTTP server to expose Prometheus metrics.
func StartMetricsServer(addr string) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, nil); err != nil {
			slog.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}
