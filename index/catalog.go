package index

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/modaio/stylist/core"
)

// CatalogIndex implements core.VectorIndex. It runs an exact linear scan while
// the catalog stays below ScanThreshold and switches to HNSW above it,
// oversampling approximate lookups by Oversample to compensate for
// filter-induced sparsity. When post-filtering still starves a query, it
// re-runs the exact scan so the caller gets either k results or an explicit
// empty set, never a silently truncated one.
type CatalogIndex struct {
	mu        sync.RWMutex
	flat      *FlatIndex
	ann       *HNSWIndex
	dimension int
	cfg       CatalogConfig
	gen       atomic.Uint64
}

// CatalogConfig tunes the adaptive behavior.
type CatalogConfig struct {
	// ScanThreshold is the catalog size below which exact scan is used.
	ScanThreshold int `yaml:"scan_threshold" json:"scan_threshold"`

	// Oversample multiplies k on approximate lookups before post-filtering.
	Oversample int `yaml:"oversample" json:"oversample"`

	// HNSW holds graph construction parameters.
	HNSW HNSWConfig `yaml:"-" json:"hnsw"`
}

// DefaultCatalogConfig returns sensible defaults.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		ScanThreshold: 2000,
		Oversample:    4,
		HNSW:          DefaultHNSWConfig(),
	}
}

// NewCatalogIndex creates the adaptive catalog index.
func NewCatalogIndex(dimension int, cfg CatalogConfig) *CatalogIndex {
	if cfg.ScanThreshold <= 0 {
		cfg.ScanThreshold = DefaultCatalogConfig().ScanThreshold
	}
	if cfg.Oversample <= 0 {
		cfg.Oversample = DefaultCatalogConfig().Oversample
	}
	if cfg.HNSW.M == 0 {
		cfg.HNSW = DefaultHNSWConfig()
	}
	return &CatalogIndex{
		flat:      NewFlatIndex(dimension),
		dimension: dimension,
		cfg:       cfg,
	}
}

// Upsert adds or replaces a product in both the exact and approximate
// structures. Readers keep completing on the previous consistent snapshot.
func (c *CatalogIndex) Upsert(p core.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.flat.Add(p); err != nil {
		return err
	}

	if c.ann == nil && c.flat.Size() > c.cfg.ScanThreshold {
		if err := c.buildANNLocked(); err != nil {
			return err
		}
	} else if c.ann != nil {
		if err := c.ann.Add(p); err != nil {
			return err
		}
	}

	c.gen.Add(1)
	return nil
}

// buildANNLocked bulk-loads the HNSW graph from the flat store.
func (c *CatalogIndex) buildANNLocked() error {
	ann := NewHNSWIndex(c.dimension, c.cfg.HNSW)
	c.flat.mu.RLock()
	defer c.flat.mu.RUnlock()
	for _, p := range c.flat.products {
		if err := ann.Add(p); err != nil {
			return fmt.Errorf("ann build failed: %w", err)
		}
	}
	c.ann = ann
	return nil
}

// Query returns up to k results ordered by descending similarity.
func (c *CatalogIndex) Query(vector []float32, k int, filter core.Filter) ([]core.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", core.ErrValidation, k)
	}

	c.mu.RLock()
	ann := c.ann
	c.mu.RUnlock()

	if ann == nil || c.flat.Size() <= c.cfg.ScanThreshold {
		return c.flat.Search(vector, k, filter)
	}

	// Approximate path: oversample, post-filter inside the ANN search
	results, err := ann.Search(vector, k*c.cfg.Oversample, filter)
	if err != nil {
		return nil, err
	}

	if len(results) >= k {
		results = results[:k]
		assignRanks(results)
		return results, nil
	}

	// Filter starved the oversampled candidate set. Fall back to the exact
	// scan so the shortfall is real, not an artifact of the ANN beam.
	return c.flat.Search(vector, k, filter)
}

// Remove deletes a product.
func (c *CatalogIndex) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.flat.Delete(id); err != nil {
		return err
	}
	if c.ann != nil {
		if err := c.ann.Delete(id); err != nil {
			return err
		}
	}

	c.gen.Add(1)
	return nil
}

// Get returns a product by id.
func (c *CatalogIndex) Get(id string) (core.Product, bool) {
	return c.flat.Get(id)
}

// Size returns the number of indexed products.
func (c *CatalogIndex) Size() int {
	return c.flat.Size()
}

// Dimension returns the fixed embedding dimension.
func (c *CatalogIndex) Dimension() int {
	return c.dimension
}

// Generation returns the write counter for cache invalidation.
func (c *CatalogIndex) Generation() uint64 {
	return c.gen.Load()
}

// catalogState is the serialized snapshot; the ANN graph is rebuilt on load.
type catalogState struct {
	Flat      json.RawMessage `json:"flat"`
	Dimension int             `json:"dimension"`
}

// Serialize snapshots the catalog for persistence.
func (c *CatalogIndex) Serialize() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	flatData, err := c.flat.Serialize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(catalogState{Flat: flatData, Dimension: c.dimension})
}

// Deserialize restores a snapshot and rebuilds the ANN graph if the catalog
// exceeds the scan threshold.
func (c *CatalogIndex) Deserialize(data []byte) error {
	var state catalogState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal catalog index state: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	flat := NewFlatIndex(state.Dimension)
	if err := flat.Deserialize(state.Flat); err != nil {
		return err
	}

	c.flat = flat
	c.dimension = state.Dimension
	c.ann = nil
	if c.flat.Size() > c.cfg.ScanThreshold {
		if err := c.buildANNLocked(); err != nil {
			return err
		}
	}

	c.gen.Add(1)
	return nil
}
