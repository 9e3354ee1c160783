package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sfclink_parsing_seconds",
		Help:    "Time spent parsing a source with tree-sitter.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ParsersInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sfclink_parsers_in_use",
		Help: "Number of tree-sitter parsers currently checked out per grammar.",
	}, []string{"language"})

	CompileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sfclink_compile_seconds",
		Help:    "Time spent compiling a single source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	LinkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sfclink_link_seconds",
		Help:    "Time spent linking a whole module graph.",
		Buckets: prometheus.DefBuckets,
	})

	ModulesEmitted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sfclink_modules_emitted",
		Help: "Number of scripts emitted by the last link.",
	})

	LinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sfclink_link_errors_total",
		Help: "Total number of per-file link failures by error code.",
	}, []string{"code"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sfclink_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sfclink_rebuilds_total",
		Help: "Total number of rebuilds triggered by watch mode.",
	})

	HistoryQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sfclink_history_queue_depth",
		Help: "Number of build records waiting to be written to history.",
	})

	HistoryWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sfclink_history_write_errors_total",
		Help: "Total number of build records dropped or failed to persist.",
	})
)
