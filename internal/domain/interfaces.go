package domain

import "context"

// Vector is a fixed-length embedding of a piece of text.
type Vector = []float64

// Rule is a reference tax rule from the knowledge base.
type Rule struct {
	AssetType     string   `json:"asset_type"`
	HoldingPeriod string   `json:"holding_period"`
	TaxTreatment  string   `json:"tax_treatment"`
	RateRules     string   `json:"rate_rules"`
	Forms         []string `json:"forms"`
	Deadline      string   `json:"deadline"`
}

// SearchResult represents a matching rule with a relevance score.
type SearchResult struct {
	Rule  Rule
	Index int
	Score float64
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) (Vector, error)
}

// Preparer is implemented by embedders that need a corpus pass before Embed.
type Preparer interface {
	Prepare(corpus []string) error
}

// Vectorizer resolves text to a vector, possibly from a cache.
type Vectorizer interface {
	Get(ctx context.Context, text string) (Vector, error)
}
