package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fs_index"

// Metrics holds the collectors shared by the indexer, search and embedding layers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Passes        *prometheus.CounterVec
	PassDuration  prometheus.Histogram
	Files         *prometheus.CounterVec
	IndexedFiles  prometheus.Gauge
	IndexVersion  prometheus.Gauge
	EmbedCalls    *prometheus.CounterVec
	EmbedRetries  prometheus.Counter
	CacheLookups  *prometheus.CounterVec
	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_passes_total",
			Help:      "Indexing passes by outcome.",
		}, []string{"outcome"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_pass_duration_seconds",
			Help:      "Duration of indexing passes.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_files_total",
			Help:      "Files seen by indexing passes, by result.",
		}, []string{"result"}),
		IndexedFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_files",
			Help:      "Records in the committed snapshot.",
		}),
		IndexVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_version",
			Help:      "Current index version.",
		}),
		EmbedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_calls_total",
			Help:      "Calls to the embedding and captioning services, by operation and outcome.",
		}, []string{"op", "outcome"}),
		EmbedRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_retries_total",
			Help:      "Retried embedding or captioning attempts.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"outcome"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Search queries by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End to end search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.Passes, m.PassDuration, m.Files, m.IndexedFiles, m.IndexVersion,
		m.EmbedCalls, m.EmbedRetries, m.CacheLookups, m.Queries, m.QueryDuration,
	)
	return m
}

func (m *Metrics) PassFinished(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(outcome).Inc()
	m.PassDuration.Observe(seconds)
}

func (m *Metrics) FilesSeen(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Files.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) SnapshotPublished(records int, version uint64) {
	if m == nil {
		return
	}
	m.IndexedFiles.Set(float64(records))
	m.IndexVersion.Set(float64(version))
}

func (m *Metrics) EmbedCall(op, outcome string) {
	if m == nil {
		return
	}
	m.EmbedCalls.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) EmbedRetry() {
	if m == nil {
		return
	}
	m.EmbedRetries.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QueryFinished(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(outcome).Inc()
	m.QueryDuration.Observe(seconds)
}
