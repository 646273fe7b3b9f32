package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	ManifestsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avpt_manifests_processed_total",
			Help: "Total number of manifests processed",
		},
		[]string{"status"},
	)

	ManifestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "avpt_manifest_duration_seconds",
			Help:    "Time from reading a manifest to writing its output",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	ManifestRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avpt_manifest_rows_total",
			Help: "Manifest rows seen, by media kind",
		},
		[]string{"kind"},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avpt_jobs_processed_total",
			Help: "Total number of stage jobs processed",
		},
		[]string{"stage", "status"},
	)

	JobsProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avpt_jobs_processing_duration_seconds",
			Help:    "Duration of stage jobs in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	WorkerPoolActiveJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avpt_worker_pool_active_jobs",
			Help: "Number of jobs currently being processed, by stage",
		},
		[]string{"stage"},
	)

	WorkerPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avpt_worker_pool_size",
			Help: "Configured worker count, by stage",
		},
		[]string{"stage"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avpt_jobs_in_flight",
			Help: "ARKs currently held by the job tracker",
		},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	StorageBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_bytes_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application information",
		},
		[]string{"version", "environment", "service"},
	)

	AppUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_up",
			Help: "Application is up and running",
		},
	)
)

func RecordManifest(status string, durationSeconds float64) {
	ManifestsProcessedTotal.WithLabelValues(status).Inc()
	if status == "success" {
		ManifestDuration.Observe(durationSeconds)
	}
}

func RecordRow(kind string) {
	ManifestRows.WithLabelValues(kind).Inc()
}

func SetAppInfo(version, environment, service string) {
	AppInfo.WithLabelValues(version, environment, service).Set(1)
	AppUp.Set(1)
}

func SetWorkerPoolSize(stage string, size int) {
	WorkerPoolSize.WithLabelValues(stage).Set(float64(size))
}
