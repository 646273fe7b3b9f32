// Package server exposes the status, health, job and metrics endpoints of a
// running pipeline.
package server

import (
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/health"
	"github.com/abdul-hamid-achik/av-pairtree/internal/jobs"
	"github.com/abdul-hamid-achik/av-pairtree/internal/metrics"
	"github.com/abdul-hamid-achik/av-pairtree/internal/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	Addr    string
	Checker *health.Checker
	Tracker jobs.Tracker
	// ServiceName turns on request tracing when set.
	ServiceName string
}

func NewHandler(opts Options) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", health.StatusHandler())
	mux.HandleFunc("/health", health.HealthHandler(opts.Checker))
	mux.HandleFunc("/health/ready", health.ReadinessHandler(opts.Checker))
	mux.HandleFunc("/health/live", health.LivenessHandler())
	mux.HandleFunc("/jobs", health.JobsHandler(opts.Tracker))
	mux.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = metrics.HTTPMetricsMiddleware(handler)
	handler = Recovery(handler)
	handler = RequestLogger(handler)
	handler = RequestID(handler)
	if opts.ServiceName != "" {
		handler = tracing.HTTPMiddleware(opts.ServiceName)(handler)
	}
	return handler
}

func New(opts Options) *http.Server {
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           NewHandler(opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
