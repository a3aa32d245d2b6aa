package metrics_test

import (
	"testing"

	"github.com/0x5457/fs-index/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.PassFinished("ok", 0.5)
	m.FilesSeen("indexed", 3)
	m.FilesSeen("failed", 0)
	m.SnapshotPublished(7, 2)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Passes.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Files.WithLabelValues("indexed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.IndexedFiles))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexVersion))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.PassFinished("ok", 1)
		m.FilesSeen("indexed", 1)
		m.SnapshotPublished(1, 1)
		m.EmbedCall("embed", "ok")
		m.EmbedRetry()
		m.CacheLookup(true)
		m.QueryFinished("ok", 0.1)
	})
}
