package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and ingestion pipeline metrics.
var (
	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "search_cache_total",
			Help:      "Search result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	SearchDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "search_denied_total",
			Help:      "Search requests denied by admission control",
		},
	)

	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "ingest_documents_total",
			Help:      "Documents written by ingestion passes",
		},
		[]string{"pass"}, // "startup" / "cycle" / "manual"
	)

	IngestCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "newsdex",
			Name:      "ingest_cycle_duration_seconds",
			Help:      "Duration of a full ingestion pass",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	IngestFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "ingest_failures_total",
			Help:      "Failed ingestion passes",
		},
		[]string{"pass"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers search/ingest metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchCacheTotal)
	prometheus.MustRegister(SearchDeniedTotal)
	prometheus.MustRegister(IngestDocumentsTotal)
	prometheus.MustRegister(IngestCycleDuration)
	prometheus.MustRegister(IngestFailuresTotal)
	pipelineMetricsRegistered = true
}
