package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pylens_scans_total",
		Help: "Total number of scan runs by mode.",
	}, []string{"mode"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pylens_scan_duration_seconds",
		Help:    "Time spent on one scan run.",
		Buckets: prometheus.DefBuckets,
	})

	ParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pylens_parse_errors_total",
		Help: "Total number of files rejected by the parser.",
	})

	FindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pylens_findings_total",
		Help: "Total number of findings by category.",
	}, []string{"category"})

	WatchEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pylens_watch_events_total",
		Help: "Total number of debounced file change events.",
	})
)
