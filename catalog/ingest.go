package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/modaio/stylist/core"
	"github.com/modaio/stylist/persistence"
)

// Ingestor builds catalog state: embeds products that lack vectors, fills the
// index, extracts the vocabulary, and snapshots everything to the store.
type Ingestor struct {
	index    core.VectorIndex
	store    persistence.Store
	embedder core.Embedder
	logger   *slog.Logger

	// EmbedConcurrency bounds parallel embedding calls during bulk ingestion.
	EmbedConcurrency int
}

// NewIngestor wires an ingestor.
func NewIngestor(index core.VectorIndex, store persistence.Store, embedder core.Embedder, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		index:            index,
		store:            store,
		embedder:         embedder,
		logger:           logger,
		EmbedConcurrency: 8,
	}
}

// Ingest embeds and indexes the products, then snapshots catalog, index and
// vocabulary. Products with pre-computed embeddings skip the embedding call.
func (in *Ingestor) Ingest(ctx context.Context, products []core.Product) (*Vocabulary, error) {
	if len(products) == 0 {
		return &Vocabulary{}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.EmbedConcurrency)
	for i := range products {
		if len(products[i].Embedding) > 0 {
			continue
		}
		g.Go(func() error {
			vec, err := in.embedder.EmbedText(gctx, describeProduct(products[i].Metadata))
			if err != nil {
				return fmt.Errorf("embed product %s: %w", products[i].ID, err)
			}
			products[i].Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range products {
		if err := in.index.Upsert(p); err != nil {
			return nil, fmt.Errorf("index product %s: %w", p.ID, err)
		}
	}
	in.logger.Info("catalog indexed", "products", len(products), "index_size", in.index.Size())

	vocab := BuildVocabulary(products)

	if err := in.store.SaveProductsBatch(ctx, products); err != nil {
		return nil, fmt.Errorf("save catalog: %w", err)
	}
	if err := in.snapshot(ctx, vocab); err != nil {
		return nil, err
	}
	return vocab, nil
}

// Restore rebuilds index and vocabulary from snapshots. Returns false when no
// snapshot exists and a fresh ingestion is required.
func (in *Ingestor) Restore(ctx context.Context) (*Vocabulary, bool, error) {
	state, err := in.store.LoadIndexState(ctx)
	if err != nil || len(state) == 0 {
		return nil, false, nil
	}
	if err := in.index.Deserialize(state); err != nil {
		in.logger.Warn("index snapshot rejected, rebuilding", "error", err)
		return nil, false, nil
	}

	raw, err := in.store.LoadVocabulary(ctx)
	if err != nil || len(raw) == 0 {
		// Index restored but vocabulary missing: rebuild it from the catalog.
		products, loadErr := in.store.LoadProducts(ctx)
		if loadErr != nil {
			return nil, false, nil
		}
		vocab := BuildVocabulary(products)
		return vocab, true, nil
	}
	vocab, err := UnmarshalVocabulary(raw)
	if err != nil {
		return nil, false, nil
	}
	in.logger.Info("catalog restored from snapshot", "index_size", in.index.Size())
	return vocab, true, nil
}

func (in *Ingestor) snapshot(ctx context.Context, vocab *Vocabulary) error {
	state, err := in.index.Serialize()
	if err != nil {
		return fmt.Errorf("serialize index: %w", err)
	}
	if err := in.store.SaveIndexState(ctx, state); err != nil {
		return fmt.Errorf("save index snapshot: %w", err)
	}
	raw, err := vocab.Marshal()
	if err != nil {
		return fmt.Errorf("serialize vocabulary: %w", err)
	}
	if err := in.store.SaveVocabulary(ctx, raw); err != nil {
		return fmt.Errorf("save vocabulary: %w", err)
	}
	return nil
}

// describeProduct builds the embedding text for a product from its metadata.
func describeProduct(m core.ProductMetadata) string {
	parts := make([]string, 0, 5)
	for _, s := range []string{string(m.Gender), m.Color, m.Category, m.Title, m.Brand} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
