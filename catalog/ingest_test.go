package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaio/stylist/core"
	"github.com/modaio/stylist/index"
	"github.com/modaio/stylist/persistence"
)

type stubEmbedder struct {
	dim  int
	fail bool
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if s.fail {
		return nil, errors.New("embedding service down")
	}
	v := make([]float32, s.dim)
	for i, r := range text {
		v[i%s.dim] += float32(r) / 1000
	}
	return core.Normalize(v), nil
}

func (s *stubEmbedder) EmbedImage(_ context.Context, _ []byte) ([]float32, error) {
	return nil, errors.New("not used during ingestion")
}

func (s *stubEmbedder) Dimensions() int { return s.dim }

func sampleCatalog() []core.Product {
	return []core.Product{
		{ID: "1", Metadata: core.ProductMetadata{Title: "Slim Fit Shirt", Brand: "Arrow", Color: "blue", Category: "shirts", Gender: core.GenderMale}},
		{ID: "2", Metadata: core.ProductMetadata{Title: "Anarkali Kurta", Brand: "Biba", Color: "maroon", Category: "kurtas", Gender: core.GenderFemale}},
		{ID: "3", Metadata: core.ProductMetadata{Title: "Canvas Tote", Brand: "Baggit", Color: "beige", Category: "bags", Gender: core.GenderBoth}},
	}
}

func TestBuildVocabulary(t *testing.T) {
	vocab := BuildVocabulary(sampleCatalog())

	assert.Equal(t, []string{"bags", "kurtas", "shirts"}, vocab.Items)
	assert.Equal(t, []string{"beige", "blue", "maroon"}, vocab.Colors)
	assert.Equal(t, []string{"arrow", "baggit", "biba"}, vocab.Brands)
	assert.Equal(t, []string{"both", "female", "male"}, vocab.Genders)
}

func TestVocabularyStats(t *testing.T) {
	vocab := BuildVocabulary(sampleCatalog())
	stats := vocab.Stats()
	assert.Equal(t, 3, stats["items"])
	assert.Equal(t, 3, stats["colors"])
	assert.Equal(t, 3, stats["brands"])
	assert.Equal(t, 3, stats["genders"])

	var nilVocab *Vocabulary
	stats = nilVocab.Stats()
	assert.Equal(t, 0, stats["items"])
}

func TestVocabularyRoundtrip(t *testing.T) {
	vocab := BuildVocabulary(sampleCatalog())
	raw, err := vocab.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalVocabulary(raw)
	require.NoError(t, err)
	assert.Equal(t, vocab, got)
}

func TestIngestAndRestore(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	idx := index.NewVectorIndex(8, index.DefaultCatalogConfig())
	ing := NewIngestor(idx, store, &stubEmbedder{dim: 8}, nil)

	vocab, err := ing.Ingest(ctx, sampleCatalog())
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Size())
	assert.Equal(t, []string{"bags", "kurtas", "shirts"}, vocab.Items)

	// Products were persisted with their embeddings.
	p, err := store.LoadProduct(ctx, "2")
	require.NoError(t, err)
	assert.Len(t, p.Embedding, 8)

	// A fresh index restores from the snapshot without re-embedding.
	idx2 := index.NewVectorIndex(8, index.DefaultCatalogConfig())
	ing2 := NewIngestor(idx2, store, &stubEmbedder{dim: 8, fail: true}, nil)

	restored, ok, err := ing2.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, idx2.Size())
	assert.Equal(t, vocab.Items, restored.Items)
}

func TestIngestSkipsPrecomputedEmbeddings(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	idx := index.NewVectorIndex(4, index.DefaultCatalogConfig())
	ing := NewIngestor(idx, store, &stubEmbedder{dim: 4, fail: true}, nil)

	products := []core.Product{
		{ID: "1", Embedding: []float32{1, 0, 0, 0}, Metadata: core.ProductMetadata{Title: "Shirt", Category: "shirts", Gender: core.GenderMale}},
	}
	_, err := ing.Ingest(ctx, products)
	require.NoError(t, err, "products with embeddings must not hit the embedder")
	assert.Equal(t, 1, idx.Size())
}

func TestIngestEmbedFailure(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	idx := index.NewVectorIndex(4, index.DefaultCatalogConfig())
	ing := NewIngestor(idx, store, &stubEmbedder{dim: 4, fail: true}, nil)

	_, err := ing.Ingest(ctx, sampleCatalog())
	require.Error(t, err)
	assert.Equal(t, 0, idx.Size())
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	idx := index.NewVectorIndex(4, index.DefaultCatalogConfig())
	ing := NewIngestor(idx, store, &stubEmbedder{dim: 4}, nil)

	_, ok, err := ing.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIngestEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	idx := index.NewVectorIndex(4, index.DefaultCatalogConfig())
	ing := NewIngestor(idx, store, &stubEmbedder{dim: 4}, nil)

	vocab, err := ing.Ingest(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, vocab)
	assert.Equal(t, 0, idx.Size())
}
