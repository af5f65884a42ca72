package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PagesVisited        *prometheus.CounterVec
	NavigationErrors    *prometheus.CounterVec
	JobsExtracted       *prometheus.CounterVec
	ExtractDuration     prometheus.Histogram
	RunsTotal           *prometheus.CounterVec
	ActiveRuns          prometheus.Gauge

	initOnce sync.Once
)

// Init registers all collectors with the default registry. It is safe to
// call more than once.
func Init() {
	initOnce.Do(register)
}

func register() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	PagesVisited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_visited_total",
			Help: "Pages successfully loaded by the navigator.",
		},
		[]string{"kind"}, // search, detail
	)

	NavigationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_navigation_errors_total",
			Help: "Navigation failures by type.",
		},
		[]string{"type"}, // timeout, navigation, verification, session_lost
	)

	JobsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_jobs_extracted_total",
			Help: "Job detail extraction attempts.",
		},
		[]string{"status"}, // success, failure
	)

	ExtractDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_job_extract_duration_seconds",
			Help:    "Duration of a single job detail extraction.",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60},
		},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Finished pipeline runs by outcome.",
		},
		[]string{"outcome"}, // done, or the failure reason
	)

	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_active_runs",
			Help: "Pipeline runs currently executing.",
		},
	)
}
