package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"taxrag/internal/domain"
	"taxrag/internal/rulestore"
)

// progressEvery controls how often Build logs progress.
const progressEvery = 10

// CanonicalText serializes a rule the same way every time so that identical
// rules share an embedding cache entry.
func CanonicalText(r domain.Rule) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// CanonicalTexts serializes rules with CanonicalText.
func CanonicalTexts(rules []domain.Rule) ([]string, error) {
	texts := make([]string, len(rules))
	for i, r := range rules {
		t, err := CanonicalText(r)
		if err != nil {
			return nil, fmt.Errorf("serialize rule %d: %w", i, err)
		}
		texts[i] = t
	}
	return texts, nil
}

// Indexer embeds a knowledge base of rules and writes the vector and
// metadata files that rulestore.Load reads.
type Indexer struct {
	vectorizer domain.Vectorizer
	logger     *slog.Logger
}

// NewIndexer creates an indexer embedding through vectorizer.
func NewIndexer(vectorizer domain.Vectorizer, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{vectorizer: vectorizer, logger: logger}
}

// LoadKnowledgeBase reads a JSON array of rules.
func LoadKnowledgeBase(path string) ([]domain.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []domain.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode knowledge base %s: %w", path, err)
	}
	return rules, nil
}

// Build embeds every rule in the knowledge base and saves the results. It
// returns the number of rules written.
func (ix *Indexer) Build(ctx context.Context, knowledgeBasePath, vectorPath, metadataPath string) (int, error) {
	rules, err := LoadKnowledgeBase(knowledgeBasePath)
	if err != nil {
		return 0, err
	}
	texts, err := CanonicalTexts(rules)
	if err != nil {
		return 0, err
	}

	vectors := make([][]float64, len(rules))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		v, err := ix.vectorizer.Get(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed rule %d: %w", i, err)
		}
		if i > 0 && len(v) != len(vectors[0]) {
			return 0, fmt.Errorf("embed rule %d: got %d dims, want %d", i, len(v), len(vectors[0]))
		}
		vectors[i] = v
		if n := i + 1; n%progressEvery == 0 || n == len(texts) {
			ix.logger.Info("Processed rules", "done", n, "total", len(texts))
		}
	}

	if err := rulestore.Save(vectorPath, metadataPath, vectors, rules); err != nil {
		return 0, err
	}
	ix.logger.Info("Saved embeddings", "path", vectorPath)
	ix.logger.Info("Saved metadata", "path", metadataPath)
	return len(rules), nil
}
