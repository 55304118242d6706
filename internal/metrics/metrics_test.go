package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.ProviderFailure()
	m.Query(true)
	m.Query(false)
	m.Generation(false)
	m.ObserveRetrieval(time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.retrievalDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit()
		m.CacheMiss()
		m.ProviderFailure()
		m.Query(true)
		m.Generation(true)
		m.ObserveRetrieval(time.Second)
	})
	assert.Nil(t, m.Registry())
}
