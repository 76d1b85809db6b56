// Package persistence provides durable storage backends for the product
// catalog, index snapshots, and the ingestion vocabulary.
package persistence

import (
	"context"

	"github.com/modaio/stylist/core"
)

// Store handles durable storage of catalog state.
type Store interface {
	// Product operations
	SaveProduct(ctx context.Context, p core.Product) error
	SaveProductsBatch(ctx context.Context, products []core.Product) error
	LoadProduct(ctx context.Context, id string) (core.Product, error)
	LoadProducts(ctx context.Context) ([]core.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// Index snapshot operations
	SaveIndexState(ctx context.Context, data []byte) error
	LoadIndexState(ctx context.Context) ([]byte, error)

	// Vocabulary snapshot operations
	SaveVocabulary(ctx context.Context, data []byte) error
	LoadVocabulary(ctx context.Context) ([]byte, error)

	// Lifecycle
	Close() error
}
