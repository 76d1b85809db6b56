package index

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modaio/stylist/core"
)

// FlatIndex implements brute-force exact search. It is correct at any size and
// preferred below the adaptive catalog-size threshold.
type FlatIndex struct {
	mu        sync.RWMutex
	products  map[string]core.Product
	dimension int
}

// NewFlatIndex creates a new flat index.
func NewFlatIndex(dimension int) *FlatIndex {
	return &FlatIndex{
		products:  make(map[string]core.Product),
		dimension: dimension,
	}
}

// Add adds or replaces a product in the index.
func (f *FlatIndex) Add(p core.Product) error {
	if err := core.ValidateProduct(p); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	if err := core.ValidateProductDimension(p, f.dimension); err != nil {
		return fmt.Errorf("dimension mismatch: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.products[p.ID] = p
	return nil
}

// Search performs brute-force search for the k most similar products. The
// filter predicate is applied before scoring, so small catalogs never pay for
// oversampling.
func (f *FlatIndex) Search(query []float32, k int, filter core.Filter) ([]core.SearchResult, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query dimension %d does not match index dimension %d",
			core.ErrInvalidDimension, len(query), f.dimension)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	results := make([]core.SearchResult, 0, k)

	for _, p := range f.products {
		if !matchesFilter(p.Metadata, filter) {
			continue
		}

		similarity, err := core.CosineSimilarity(query, p.Embedding)
		if err != nil {
			return nil, fmt.Errorf("similarity calculation failed: %w", err)
		}

		results = append(results, core.SearchResult{
			ProductID: p.ID,
			Score:     core.ClampScore(similarity),
			Metadata:  p.Metadata,
		})
	}

	sortResults(results)

	if k > len(results) {
		k = len(results)
	}
	results = results[:k]
	assignRanks(results)

	return results, nil
}

// Delete removes a product from the index.
func (f *FlatIndex) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.products[id]; !exists {
		return fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
	}

	delete(f.products, id)
	return nil
}

// Get returns a product by id.
func (f *FlatIndex) Get(id string) (core.Product, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.products[id]
	return p, ok
}

// Size returns the number of products in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.products)
}

// Type returns the index type.
func (f *FlatIndex) Type() string {
	return "flat"
}

// flatIndexState represents the serializable state of a FlatIndex.
type flatIndexState struct {
	Products  map[string]core.Product `json:"products"`
	Dimension int                     `json:"dimension"`
}

// Serialize converts the index state to bytes.
func (f *FlatIndex) Serialize() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	// Deep copy so JSON marshaling never races a concurrent write
	productsCopy := make(map[string]core.Product, len(f.products))
	for id, p := range f.products {
		productsCopy[id] = p
	}

	return json.Marshal(flatIndexState{
		Products:  productsCopy,
		Dimension: f.dimension,
	})
}

// Deserialize restores the index state from bytes.
func (f *FlatIndex) Deserialize(data []byte) error {
	var state flatIndexState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal flat index state: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.products = state.Products
	f.dimension = state.Dimension

	return nil
}
