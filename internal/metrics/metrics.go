// Package metrics declares the domain counters and timers emitted by the
// incident pipeline. Collection and export happen via the /metrics endpoint
// on the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IncidentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safetrack_incidents_created_total",
		Help: "Total number of incidents created",
	})

	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrack_auth_attempts_total",
		Help: "Authentication attempts by result",
	}, []string{"result"})

	FilesUploaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrack_files_uploaded_total",
		Help: "Presigned uploads issued by file type",
	}, []string{"type"})

	VisionCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrack_vision_calls_total",
		Help: "Vision backend calls by result",
	}, []string{"result"})

	ImageProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "safetrack_image_processing_duration_seconds",
		Help:    "Time spent processing a single incident image",
		Buckets: prometheus.DefBuckets,
	})

	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrack_ai_requests_total",
		Help: "Generative AI requests by result",
	}, []string{"result"})

	AIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrack_ai_errors_total",
		Help: "Generative AI request errors by type",
	}, []string{"type"})

	RcaGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrack_rca_generated_total",
		Help: "RCA suggestions generated by incident category",
	}, []string{"category"})

	RcaFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrack_rca_failed_total",
		Help: "RCA generation failures by error type",
	}, []string{"error_type"})

	RcaApproved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrack_rca_approved_total",
		Help: "Finalized RCA reports by incident category",
	}, []string{"category"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetrack_rate_limit_rejections_total",
		Help: "Requests rejected by rate limiting, by policy",
	}, []string{"policy"})
)
