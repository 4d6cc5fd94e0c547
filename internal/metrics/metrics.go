package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postersnap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postersnap_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Job Metrics
	JobsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postersnap_jobs_created_total",
			Help: "Total number of poster generation jobs created",
		},
		[]string{"input_mode"},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postersnap_jobs_completed_total",
			Help: "Total number of finished poster generation jobs",
		},
		[]string{"status"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "postersnap_jobs_in_progress",
			Help: "Number of jobs currently being processed",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postersnap_job_duration_seconds",
			Help:    "Job processing duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7 minutes
		},
		[]string{"style", "format"},
	)

	// Page Metrics
	PagesRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postersnap_pages_rendered_total",
			Help: "Total number of poster pages rendered",
		},
		[]string{"format", "path"},
	)

	// Quota Metrics
	QuotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postersnap_quota_rejections_total",
			Help: "Total number of submits rejected by quota checks",
		},
		[]string{"reason"},
	)

	CreditsDeductedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postersnap_credits_deducted_total",
			Help: "Total credits deducted from user balances",
		},
	)

	// Synthesizer Metrics
	SynthesisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postersnap_synthesis_total",
			Help: "Total content synthesis calls by backend path",
		},
		[]string{"path"}, // openai | fallback
	)

	// Metadata Metrics
	MetadataExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postersnap_metadata_extractions_total",
			Help: "Total URL metadata extraction attempts",
		},
		[]string{"kind", "status"},
	)
)
