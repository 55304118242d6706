// Package metrics exposes Prometheus instrumentation for the pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taxrag"

// Metrics holds the collectors shared by the pipeline components.
type Metrics struct {
	registry          *prometheus.Registry
	cacheLookups      *prometheus.CounterVec
	providerFailures  prometheus.Counter
	retrievalDuration prometheus.Histogram
	queries           *prometheus.CounterVec
	generations       *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_lookups_total",
			Help:      "Embedding cache lookups by result (hit or miss).",
		}, []string{"result"}),
		providerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Embedding provider calls that failed after retries.",
		}),
		retrievalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Time spent ranking rules for a query vector.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"status"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Answer generation calls by outcome.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.cacheLookups, m.providerFailures, m.retrievalDuration, m.queries, m.generations)
	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// CacheHit records an embedding cache hit.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheLookups.WithLabelValues("hit").Inc()
	}
}

// CacheMiss records an embedding cache miss.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// ProviderFailure records a failed embedding provider call.
func (m *Metrics) ProviderFailure() {
	if m != nil {
		m.providerFailures.Inc()
	}
}

// ObserveRetrieval records how long a retrieval took.
func (m *Metrics) ObserveRetrieval(d time.Duration) {
	if m != nil {
		m.retrievalDuration.Observe(d.Seconds())
	}
}

// Query records a pipeline run outcome.
func (m *Metrics) Query(ok bool) {
	if m != nil {
		m.queries.WithLabelValues(status(ok)).Inc()
	}
}

// Generation records an answer generation outcome.
func (m *Metrics) Generation(ok bool) {
	if m != nil {
		m.generations.WithLabelValues(status(ok)).Inc()
	}
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Serve exposes the registry on addr under /metrics until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if m == nil {
		return errors.New("metrics disabled")
	}
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
