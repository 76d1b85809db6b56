package fusion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaio/stylist/core"
	"github.com/modaio/stylist/index"
)

// stubEmbedder returns canned unit vectors per text and can be told to fail.
type stubEmbedder struct {
	vectors  map[string][]float32
	failText bool
	calls    int
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.failText {
		return nil, errors.New("embedding service down")
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return nil, errors.New("no canned vector for " + text)
}

func (s *stubEmbedder) EmbedImage(_ context.Context, _ []byte) ([]float32, error) {
	return nil, errors.New("not used by the fusion engine")
}

func (s *stubEmbedder) Dimensions() int { return 3 }

// countingIndex wraps a real index and counts lookups, so cache hits are
// observable.
type countingIndex struct {
	core.VectorIndex
	queries int
}

func (c *countingIndex) Query(vector []float32, k int, filter core.Filter) ([]core.SearchResult, error) {
	c.queries++
	return c.VectorIndex.Query(vector, k, filter)
}

func newTestIndex(t *testing.T) core.VectorIndex {
	t.Helper()

	idx := index.NewVectorIndex(3, index.DefaultCatalogConfig())
	products := []core.Product{
		{ID: "r1", Embedding: []float32{1, 0, 0}, Metadata: core.ProductMetadata{Title: "Red shirt", Category: "shirt", Gender: core.GenderFemale}},
		{ID: "b1", Embedding: []float32{0, 1, 0}, Metadata: core.ProductMetadata{Title: "Blue jeans", Category: "jeans", Gender: core.GenderMale}},
		{ID: "g1", Embedding: []float32{0, 0, 1}, Metadata: core.ProductMetadata{Title: "Green scarf", Category: "scarf", Gender: core.GenderBoth}},
		{ID: "rb", Embedding: core.Normalize([]float32{1, 1, 0}), Metadata: core.ProductMetadata{Title: "Purple dress", Category: "dress", Gender: core.GenderFemale}},
	}
	for _, p := range products {
		require.NoError(t, idx.Upsert(p))
	}
	return idx
}

func newTestEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: map[string][]float32{
		"red":  {1, 0, 0},
		"blue": {0, 1, 0},
	}}
}

func newTestEngine(t *testing.T, idx core.VectorIndex, emb core.Embedder, cfg Config) *Engine {
	t.Helper()
	eng, err := NewEngine(idx, emb, cfg, nil)
	require.NoError(t, err)
	return eng
}

func TestEngineTextOnly(t *testing.T) {
	eng := newTestEngine(t, newTestIndex(t), newTestEmbedder(), DefaultConfig())

	res, err := eng.Run(context.Background(), core.Query{Text: "red", K: 3}, "red things", "")
	require.NoError(t, err)

	assert.Empty(t, res.DegradedModality)
	assert.Equal(t, "red things", res.Group.Label)
	require.NotEmpty(t, res.Group.Results)
	assert.Equal(t, "r1", res.Group.Results[0].ProductID)
	assert.Equal(t, 1, res.Group.Results[0].Rank)
}

func TestEngineEarlyFusion(t *testing.T) {
	eng := newTestEngine(t, newTestIndex(t), newTestEmbedder(), DefaultConfig())

	q := core.Query{
		Text:        "red",
		ImageVector: []float32{0, 1, 0},
		WeightText:  0.5,
		WeightImage: 0.5,
		K:           3,
		Mode:        core.FusionEarly,
	}
	res, err := eng.Run(context.Background(), q, "refined", "")
	require.NoError(t, err)

	// The fused vector sits between the red and blue axes, so the diagonal
	// product wins over either pure match.
	require.NotEmpty(t, res.Group.Results)
	assert.Equal(t, "rb", res.Group.Results[0].ProductID)
}

func TestEngineLateFusion(t *testing.T) {
	eng := newTestEngine(t, newTestIndex(t), newTestEmbedder(), DefaultConfig())

	q := core.Query{
		Text:        "red",
		ImageVector: []float32{0, 1, 0},
		WeightText:  0.5,
		WeightImage: 0.5,
		K:           4,
		Mode:        core.FusionLate,
	}
	res, err := eng.Run(context.Background(), q, "mixed", "")
	require.NoError(t, err)

	results := res.Group.Results
	require.GreaterOrEqual(t, len(results), 3)
	assert.Equal(t, "rb", results[0].ProductID)

	// r1 and b1 each score 0.5 after weighting; the tie breaks on ascending
	// product id.
	assert.Equal(t, "b1", results[1].ProductID)
	assert.Equal(t, "r1", results[2].ProductID)

	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestEngineImageOnlyMinScore(t *testing.T) {
	eng := newTestEngine(t, newTestIndex(t), newTestEmbedder(), DefaultConfig())

	q := core.Query{ImageVector: []float32{1, 0, 0}, K: 4}
	res, err := eng.Run(context.Background(), q, "similar items", "")
	require.NoError(t, err)

	// Orthogonal products score 0 and fall below the 0.5 cutoff.
	require.Len(t, res.Group.Results, 2)
	assert.Equal(t, "r1", res.Group.Results[0].ProductID)
	assert.Equal(t, "rb", res.Group.Results[1].ProductID)
	assert.Equal(t, 1, res.Group.Results[0].Rank)
	assert.Equal(t, 2, res.Group.Results[1].Rank)
}

func TestEngineDegradesToImageOnTextFailure(t *testing.T) {
	emb := newTestEmbedder()
	emb.failText = true
	eng := newTestEngine(t, newTestIndex(t), emb, DefaultConfig())

	q := core.Query{Text: "red", ImageVector: []float32{0, 1, 0}, K: 3}
	res, err := eng.Run(context.Background(), q, "degraded", "")
	require.NoError(t, err)

	assert.Equal(t, "text", res.DegradedModality)
	require.NotEmpty(t, res.Group.Results)
	assert.Equal(t, "b1", res.Group.Results[0].ProductID)
}

func TestEngineTextFailureWithoutImageFails(t *testing.T) {
	emb := newTestEmbedder()
	emb.failText = true
	eng := newTestEngine(t, newTestIndex(t), emb, DefaultConfig())

	_, err := eng.Run(context.Background(), core.Query{Text: "red", K: 3}, "x", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrEmbeddingFailure))
}

func TestEngineEmptyQuery(t *testing.T) {
	eng := newTestEngine(t, newTestIndex(t), newTestEmbedder(), DefaultConfig())

	_, err := eng.Run(context.Background(), core.Query{K: 3}, "x", "")
	assert.True(t, errors.Is(err, core.ErrEmptyQuery))
}

func TestEngineNegativeWeightRejected(t *testing.T) {
	eng := newTestEngine(t, newTestIndex(t), newTestEmbedder(), DefaultConfig())

	q := core.Query{Text: "red", WeightText: -0.2, WeightImage: 0.4, K: 3}
	_, err := eng.Run(context.Background(), q, "x", "")
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestEngineCacheHitAndInvalidation(t *testing.T) {
	idx := &countingIndex{VectorIndex: newTestIndex(t)}
	eng := newTestEngine(t, idx, newTestEmbedder(), DefaultConfig())

	q := core.Query{Text: "red", K: 3}

	first, err := eng.Run(context.Background(), q, "x", "")
	require.NoError(t, err)
	require.Equal(t, 1, idx.queries)

	second, err := eng.Run(context.Background(), q, "x", "")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.queries, "repeat query should hit the cache")
	assert.Equal(t, first.Group.Results, second.Group.Results)

	// A write bumps the index generation, which changes the cache key.
	require.NoError(t, idx.Upsert(core.Product{
		ID:        "r2",
		Embedding: []float32{1, 0, 0},
		Metadata:  core.ProductMetadata{Title: "Crimson top", Category: "top", Gender: core.GenderFemale},
	}))

	third, err := eng.Run(context.Background(), q, "x", "")
	require.NoError(t, err)
	assert.Equal(t, 2, idx.queries, "write should invalidate cached results")

	ids := make([]string, 0, len(third.Group.Results))
	for _, r := range third.Group.Results {
		ids = append(ids, r.ProductID)
	}
	assert.Contains(t, ids, "r2")
}

func TestEngineGenderFilter(t *testing.T) {
	eng := newTestEngine(t, newTestIndex(t), newTestEmbedder(), DefaultConfig())

	q := core.Query{Text: "blue", K: 4, Filter: core.Filter{Gender: core.GenderFemale}}
	res, err := eng.Run(context.Background(), q, "x", "")
	require.NoError(t, err)

	for _, r := range res.Group.Results {
		assert.NotEqual(t, core.GenderMale, r.Metadata.Gender)
	}
}
