package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	ingestJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chronicle",
			Subsystem: "ingest",
			Name:      "jobs_total",
			Help:      "Number of finished ingestion jobs by final status.",
		}, []string{"status"},
	)
	ingestLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chronicle",
			Subsystem: "ingest",
			Name:      "lines_total",
			Help:      "Ingested lines by outcome (invalid, missing_parent, duplicate, inserted, insert_failed, parent_updated, parent_update_failed).",
		}, []string{"outcome"},
	)
	ingestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chronicle",
			Subsystem: "ingest",
			Name:      "job_duration_seconds",
			Help:      "Wall time of finished ingestion jobs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		},
	)
	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chronicle",
			Subsystem: "ingest",
			Name:      "active_jobs",
			Help:      "Ingestion jobs currently in PROCESSING state.",
		},
	)
	analyticsQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chronicle",
			Subsystem: "analytics",
			Name:      "queries_total",
			Help:      "Number of analytics queries by query kind and result.",
		}, []string{"query", "result"},
	)
	analyticsDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chronicle",
			Subsystem: "analytics",
			Name:      "query_duration_seconds",
			Help:      "Latency of analytics queries including store round trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		ingestJobs, ingestLines, ingestDuration, activeJobs,
		analyticsQueries, analyticsDuration,
		processCPUPercent, processRSSBytes, processThreads,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncIngestJob(status string) {
	if regOK.Load() {
		ingestJobs.WithLabelValues(status).Inc()
	}
}

func AddIngestLines(outcome string, n int) {
	if regOK.Load() && n > 0 {
		ingestLines.WithLabelValues(outcome).Add(float64(n))
	}
}

func ObserveIngestDuration(d time.Duration) {
	if regOK.Load() {
		ingestDuration.Observe(d.Seconds())
	}
}

func IncActiveJobs() {
	if regOK.Load() {
		activeJobs.Inc()
	}
}

func DecActiveJobs() {
	if regOK.Load() {
		activeJobs.Dec()
	}
}

// ObserveQuery records one analytics query. err decides the result label.
func ObserveQuery(query string, d time.Duration, err error) {
	if !regOK.Load() {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	analyticsQueries.WithLabelValues(query, result).Inc()
	analyticsDuration.WithLabelValues(query).Observe(d.Seconds())
}
