package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxrag/internal/domain"
	"taxrag/internal/generation"
	"taxrag/internal/retrieval"
	"taxrag/internal/rulestore"
	"taxrag/internal/slots"
)

// keywordVectorizer maps text onto a few fixed axes so tests can reason
// about ranking without a real model.
type keywordVectorizer struct {
	calls int
	err   error
}

var axes = []string{"unlisted", "non-listed", "listed", "inherit", "gift", "sme"}

func (v *keywordVectorizer) Get(_ context.Context, text string) (domain.Vector, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	lower := strings.ToLower(text)
	out := make(domain.Vector, len(axes))
	for i, a := range axes {
		if strings.Contains(lower, a) {
			out[i] = 1
		}
	}
	// "unlisted" and "non-listed" describe the same thing.
	if out[0] == 1 || out[1] == 1 {
		out[0], out[1], out[2] = 1, 1, 0
	}
	return out, nil
}

type recordingGenerator struct {
	prompt string
	result generation.Result
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) generation.Result {
	g.prompt = prompt
	return g.result
}

func testRules() []domain.Rule {
	return []domain.Rule{
		{AssetType: "Listed Stock", TaxTreatment: "Separate taxation", Forms: []string{"Form 84"}},
		{AssetType: "Inheritance", TaxTreatment: "Inheritance tax", Forms: []string{"Form 45"}},
		{AssetType: "Unlisted Stock", HoldingPeriod: "< 1 year", TaxTreatment: "Major shareholder", Forms: []string{"Form 84"}},
		{AssetType: "Gifted Shares", TaxTreatment: "Gift tax", Forms: []string{"Form 46"}},
	}
}

func newTestPipeline(t *testing.T, v domain.Vectorizer, g generation.Generator) *Pipeline {
	t.Helper()
	rules := testRules()
	vectors := make([][]float64, len(rules))
	kv := &keywordVectorizer{}
	for i, r := range rules {
		text, err := CanonicalText(r)
		require.NoError(t, err)
		vectors[i], err = kv.Get(context.Background(), text)
		require.NoError(t, err)
	}
	r := retrieval.New(rulestore.New(vectors, rules))
	return NewPipeline(slots.NewExtractor(), v, r, g, WithTopK(2))
}

func TestPipeline_Run(t *testing.T) {
	gen := &recordingGenerator{result: generation.Result{Text: "File Form 84.", Model: "test"}}
	p := newTestPipeline(t, &keywordVectorizer{}, gen)

	query := "I sold 6% shares of a non-listed company last year"
	a, err := p.Run(context.Background(), query)
	require.NoError(t, err)

	assert.NotEmpty(t, a.RequestID)
	assert.Equal(t, query, a.Query)
	require.NotNil(t, a.Slots.SharePercentage)
	assert.Equal(t, 6, *a.Slots.SharePercentage)
	assert.Equal(t, slots.CompanyNonListed, a.Slots.CompanyType)
	assert.Equal(t, slots.AssetUnlistedStock, a.Slots.AssetType)
	assert.Equal(t, slots.YearPrevious, a.Slots.TransactionYear)

	require.Len(t, a.Rules, 2)
	assert.Equal(t, "Unlisted Stock", a.Rules[0].Rule.AssetType)
	assert.Greater(t, a.Rules[0].Score, a.Rules[1].Score)

	assert.Equal(t, a.Prompt, gen.prompt)
	assert.Contains(t, a.Prompt, "User Query: "+query)
	assert.Contains(t, a.Prompt, "- company_type: non-listed")
	assert.Equal(t, "File Form 84.", a.Text())
}

func TestPipeline_Run_GenerationFailureIsNotAnError(t *testing.T) {
	gen := &recordingGenerator{result: generation.Failed(errors.New("rate limited"))}
	p := newTestPipeline(t, &keywordVectorizer{}, gen)

	a, err := p.Run(context.Background(), "I inherited shares")
	require.NoError(t, err)
	assert.False(t, a.Result.OK())
	assert.Equal(t, "Error calling LLM: rate limited", a.Text())
	assert.Equal(t, "Inheritance", a.Rules[0].Rule.AssetType)
}

func TestPipeline_Run_EmbeddingFailure(t *testing.T) {
	gen := &recordingGenerator{}
	p := newTestPipeline(t, &keywordVectorizer{err: errors.New("provider down")}, gen)

	_, err := p.Run(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
	assert.Empty(t, gen.prompt)
}

func TestPipeline_Run_DimensionMismatch(t *testing.T) {
	gen := &recordingGenerator{}
	r := retrieval.New(rulestore.New([][]float64{{1, 0, 0}}, testRules()[:1]))
	p := NewPipeline(slots.NewExtractor(), &keywordVectorizer{}, r, gen)

	_, err := p.Run(context.Background(), "listed")
	require.ErrorIs(t, err, retrieval.ErrDimensionMismatch)
}

func TestPipeline_Run_RequestIDsDiffer(t *testing.T) {
	p := newTestPipeline(t, &keywordVectorizer{}, &recordingGenerator{})
	a1, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	a2, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.NotEqual(t, a1.RequestID, a2.RequestID)
}
