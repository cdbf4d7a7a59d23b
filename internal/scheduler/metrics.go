package scheduler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry            *prometheus.Registry
	jobsTotal           *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
	activeJobs          prometheus.Gauge
	rearmedJobsTotal    prometheus.Counter
	bytesSavedTotal     prometheus.Counter
	handleReleasesTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batchpix_scheduler_jobs_total",
			Help: "Total processed jobs by tool and final status.",
		}, []string{"tool", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batchpix_scheduler_job_duration_seconds",
			Help:    "Transform duration for each job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batchpix_scheduler_active_jobs",
			Help: "Jobs currently processing; at most one by design.",
		}),
		rearmedJobsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchpix_scheduler_rearmed_jobs_total",
			Help: "Terminal jobs returned to pending by settings changes.",
		}),
		bytesSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchpix_scheduler_bytes_saved_total",
			Help: "Total bytes saved across completed transforms.",
		}),
		handleReleasesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchpix_scheduler_preview_releases_total",
			Help: "Preview handles released on re-arm, replace and teardown.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.rearmedJobsTotal,
		m.bytesSavedTotal,
		m.handleReleasesTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
