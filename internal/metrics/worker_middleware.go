package metrics

import (
	"time"
)

// PrometheusCollector implements worker.MetricsCollector using Prometheus
// metrics labelled by pipeline stage.
type PrometheusCollector struct{}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{}
}

// JobStarted is called when a job begins processing.
func (c *PrometheusCollector) JobStarted(stage string) {
	WorkerPoolActiveJobs.WithLabelValues(stage).Inc()
}

// JobCompleted is called when a job finishes successfully.
func (c *PrometheusCollector) JobCompleted(stage string, duration time.Duration) {
	WorkerPoolActiveJobs.WithLabelValues(stage).Dec()
	JobsProcessedTotal.WithLabelValues(stage, "success").Inc()
	JobsProcessingDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// JobFailed is called when a job returns an error or panics.
func (c *PrometheusCollector) JobFailed(stage string, duration time.Duration) {
	WorkerPoolActiveJobs.WithLabelValues(stage).Dec()
	JobsProcessedTotal.WithLabelValues(stage, "error").Inc()
	JobsProcessingDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
