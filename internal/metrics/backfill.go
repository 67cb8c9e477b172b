package metrics

import "github.com/prometheus/client_golang/prometheus"

// Job Prometheus metrics.
var (
	BackfillDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_documents_total",
			Help:      "Documents handled by the backfill",
		},
		[]string{"status"}, // "updated" / "failed"
	)

	BackfillWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backfill_write_duration_seconds",
			Help:      "Merge update duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	SchemaMigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_migrations_total",
			Help:      "Schema migration outcomes",
		},
		[]string{"result"}, // "applied" / "skipped" / "error"
	)
)

var registered bool

// Register registers all job metrics with the default registry. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingErrorsTotal,
		EmbeddingRetriesTotal,
		EmbeddingCacheTotal,
		BackfillDocumentsTotal,
		BackfillWriteDuration,
		SchemaMigrationsTotal,
	)
	registered = true
}
