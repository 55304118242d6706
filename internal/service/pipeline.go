// Package service wires extraction, embedding, retrieval and generation into
// the question-answering pipeline.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"taxrag/internal/domain"
	"taxrag/internal/generation"
	"taxrag/internal/metrics"
	"taxrag/internal/prompt"
	"taxrag/internal/retrieval"
	"taxrag/internal/slots"
)

// SlotExtractor parses a query into slots.
type SlotExtractor interface {
	Extract(text string) slots.Slots
}

// Retriever ranks rules against a query vector.
type Retriever interface {
	Retrieve(query []float64, topK int) ([]domain.SearchResult, error)
}

// Answer is everything produced for one query.
type Answer struct {
	RequestID string
	Query     string
	Slots     slots.Slots
	Rules     []domain.SearchResult
	Prompt    string
	Result    generation.Result
}

// Text returns the answer as shown to the user; generation failures are
// rendered as an error line.
func (a *Answer) Text() string {
	return a.Result.Message()
}

// Pipeline runs a query through extraction, embedding, retrieval, prompt
// assembly and generation, in that order.
type Pipeline struct {
	extractor  SlotExtractor
	vectorizer domain.Vectorizer
	retriever  Retriever
	generator  generation.Generator
	topK       int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTopK sets how many rules are retrieved per query.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		p.topK = k
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics records query and generation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// NewPipeline assembles a pipeline from its components.
func NewPipeline(extractor SlotExtractor, vectorizer domain.Vectorizer, retriever Retriever, generator generation.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:  extractor,
		vectorizer: vectorizer,
		retriever:  retriever,
		generator:  generator,
		topK:       retrieval.DefaultTopK,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run answers query. Embedding and retrieval failures are returned as
// errors; a generation failure is reported in Answer.Result instead.
func (p *Pipeline) Run(ctx context.Context, query string) (*Answer, error) {
	a := &Answer{RequestID: uuid.New().String(), Query: query}
	logger := p.logger.With("request_id", a.RequestID)

	a.Slots = p.extractor.Extract(query)
	logger.Info("Extracted slots", "slots", a.Slots.String())

	vec, err := p.vectorizer.Get(ctx, query)
	if err != nil {
		p.metrics.Query(false)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	a.Rules, err = p.retriever.Retrieve(vec, p.topK)
	if err != nil {
		p.metrics.Query(false)
		return nil, fmt.Errorf("retrieve rules: %w", err)
	}
	logger.Info("Retrieved rules", "count", len(a.Rules))

	a.Prompt = prompt.Build(query, a.Slots, a.Rules)

	a.Result = p.generator.Generate(ctx, a.Prompt)
	p.metrics.Generation(a.Result.OK())
	if !a.Result.OK() {
		logger.Warn("Answer generation failed", "error", a.Result.Err)
	}
	p.metrics.Query(true)
	return a, nil
}
