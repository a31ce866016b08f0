// Package metrics exposes the worker's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetflow_jobs_total",
		Help: "Validation jobs by file type and outcome (valid, invalid, failed, retried, dropped).",
	}, []string{"file_type", "outcome"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assetflow_job_duration_seconds",
		Help:    "End-to-end handling time of one delivery.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"file_type"})

	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetflow_validation_failures_total",
		Help: "Failed validator runs by validator name and error code.",
	}, []string{"validator", "code"})

	storageOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assetflow_storage_op_duration_seconds",
		Help:    "Object storage operation latency by operation.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"op"})

	storageOpErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetflow_storage_op_errors_total",
		Help: "Object storage operation failures by operation.",
	}, []string{"op"})

	deadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetflow_dead_letters_total",
		Help: "Messages routed to the dead-letter queue by origin topic.",
	}, []string{"topic"})

	listingsActivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assetflow_listings_activated_total",
		Help: "Listings transitioned to ACTIVE by this worker.",
	})

	listingsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assetflow_listings_rejected_total",
		Help: "Listings transitioned to REJECTED by this worker.",
	})

	inflightJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assetflow_inflight_jobs",
		Help: "Jobs currently holding a concurrency slot.",
	})
)

// JobCompleted records one finished delivery.
func JobCompleted(fileType, outcome string, d time.Duration) {
	jobsTotal.WithLabelValues(fileType, outcome).Inc()
	jobDuration.WithLabelValues(fileType).Observe(d.Seconds())
}

// ValidationFailure records one failed validator run.
func ValidationFailure(validator, code string) {
	validationFailures.WithLabelValues(validator, code).Inc()
}

// StorageOpDuration records the latency of a storage operation.
func StorageOpDuration(op string, d time.Duration) {
	storageOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

// StorageOpError records a failed storage operation.
func StorageOpError(op string) {
	storageOpErrors.WithLabelValues(op).Inc()
}

// DeadLetter records a message routed to the DLQ.
func DeadLetter(topic string) {
	deadLetters.WithLabelValues(topic).Inc()
}

// ListingActivated records a PENDING_VALIDATION -> ACTIVE transition.
func ListingActivated() { listingsActivated.Inc() }

// ListingRejected records a PENDING_VALIDATION -> REJECTED transition.
func ListingRejected() { listingsRejected.Inc() }

// JobStarted and JobFinished track the in-flight gauge.
func JobStarted()  { inflightJobs.Inc() }
func JobFinished() { inflightJobs.Dec() }

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
