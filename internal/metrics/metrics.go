// Package metrics exposes the service's Prometheus collectors on the
// default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts requests by route pattern and response class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toonslate_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	// JobsProcessed counts worker task outcomes.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toonslate_jobs_processed_total",
		Help: "Translation tasks finished by terminal status.",
	}, []string{"status"})

	// JobDuration observes wall time per translation task.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "toonslate_job_duration_seconds",
		Help:    "Wall time of one translation task.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// QuotaRejections counts requests turned away by the weekly limit.
	QuotaRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "toonslate_quota_rejections_total",
		Help: "Requests rejected because the weekly image quota was spent.",
	})

	// UploadsAccepted counts source images that passed validation.
	UploadsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "toonslate_uploads_accepted_total",
		Help: "Uploaded images accepted into storage.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
