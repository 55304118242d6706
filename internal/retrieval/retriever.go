// Package retrieval ranks knowledge base rules against a query vector by
// cosine similarity.
package retrieval

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"taxrag/internal/domain"
	"taxrag/internal/metrics"
	"taxrag/internal/rulestore"
)

// DefaultTopK is used when a caller passes a non-positive topK.
const DefaultTopK = 5

// ErrDimensionMismatch is returned when the query length differs from the
// store's vector length.
var ErrDimensionMismatch = errors.New("retrieval: query dimension mismatch")

// Retriever performs brute-force top-K search over a rule store. Squared row
// magnitudes are computed once at construction.
type Retriever struct {
	store   *rulestore.Store
	sqNorms []float64
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// WithMetrics records retrieval latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Retriever) {
		r.metrics = m
	}
}

// New creates a retriever over store.
func New(store *rulestore.Store, opts ...Option) *Retriever {
	r := &Retriever{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.sqNorms = make([]float64, store.Len())
	for i := range r.sqNorms {
		r.sqNorms[i] = sumSquares(store.Vector(i))
	}
	return r
}

// Len returns the number of searchable rules.
func (r *Retriever) Len() int { return len(r.sqNorms) }

// Retrieve returns up to topK rules ordered by descending similarity to
// query. Equal scores keep store order. An empty store yields no results.
func (r *Retriever) Retrieve(query []float64, topK int) ([]domain.SearchResult, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveRetrieval(time.Since(start)) }()

	n := len(r.sqNorms)
	if n == 0 {
		return []domain.SearchResult{}, nil
	}
	if dim := r.store.Dimension(); len(query) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), dim)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	qn2 := sumSquares(query)
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, n)
	for i := 0; i < n; i++ {
		s := cosine(dot(query, r.store.Vector(i)), qn2, r.sqNorms[i])
		scores[i] = scored{idx: i, score: s}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })

	if topK > n {
		topK = n
	}
	results := make([]domain.SearchResult, topK)
	for i := 0; i < topK; i++ {
		p := scores[i]
		results[i] = domain.SearchResult{Rule: r.store.Rule(p.idx), Index: p.idx, Score: p.score}
	}

	r.logger.Debug("Top retrieved rules", "count", len(results), "best_score", results[0].Score)
	for i, res := range results {
		r.logger.Debug("Retrieved rule", "rank", i+1, "index", res.Index, "asset_type", res.Rule.AssetType, "score", res.Score)
	}
	return results, nil
}

// RetrieveBatch runs Retrieve for each query row independently.
func (r *Retriever) RetrieveBatch(queries [][]float64, topK int) ([][]domain.SearchResult, error) {
	out := make([][]domain.SearchResult, len(queries))
	for i, q := range queries {
		res, err := r.Retrieve(q, topK)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		out[i] = res
	}
	return out, nil
}
