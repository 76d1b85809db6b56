package index

import (
	"encoding/json"
	"fmt"

	"github.com/modaio/stylist/core"
)

// HNSWIndex implements approximate nearest-neighbor search over the catalog
// using a hierarchical navigable small world graph. Filters are applied by
// post-filtering an oversampled candidate set; the caller decides the
// oversampling factor through the k it passes in.
type HNSWIndex struct {
	graph *hnswGraph
}

// NewHNSWIndex creates a new HNSW index.
func NewHNSWIndex(dimension int, config HNSWConfig) *HNSWIndex {
	return &HNSWIndex{
		graph: newHNSWGraph(dimension, config),
	}
}

// Add inserts a product into the graph.
func (h *HNSWIndex) Add(p core.Product) error {
	if err := core.ValidateProduct(p); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	if err := core.ValidateProductDimension(p, h.graph.dimension); err != nil {
		return fmt.Errorf("dimension mismatch: %w", err)
	}

	level := h.graph.assignLevel()
	newNode := newHNSWNode(p, level)

	h.graph.mu.Lock()
	defer h.graph.mu.Unlock()

	// Replacing an existing product: unlink the old node first
	if _, exists := h.graph.nodes[p.ID]; exists {
		h.removeLocked(p.ID)
	}

	if h.graph.size == 0 {
		h.graph.entryPoint = newNode
		h.graph.nodes[p.ID] = newNode
		h.graph.size++
		return nil
	}

	if err := h.insertNode(newNode); err != nil {
		return fmt.Errorf("failed to insert node: %w", err)
	}

	h.graph.nodes[p.ID] = newNode
	h.graph.size++

	if newNode.Level > h.graph.entryPoint.Level {
		h.graph.entryPoint = newNode
	}

	return nil
}

// Search performs k-nearest neighbor search with post-filtering.
func (h *HNSWIndex) Search(query []float32, k int, filter core.Filter) ([]core.SearchResult, error) {
	if len(query) != h.graph.dimension {
		return nil, fmt.Errorf("%w: query dimension %d does not match index dimension %d",
			core.ErrInvalidDimension, len(query), h.graph.dimension)
	}

	h.graph.mu.RLock()
	defer h.graph.mu.RUnlock()

	if h.graph.size == 0 {
		return []core.SearchResult{}, nil
	}

	ef := h.graph.config.EfSearch
	if ef < k {
		ef = k
	}

	// Navigate from the entry point down to layer 1
	entryPoints := []*hnswNode{h.graph.entryPoint}
	for level := h.graph.entryPoint.Level; level > 0; level-- {
		entryPoints = h.searchLayer(query, entryPoints, 1, level)
	}

	// Layer 0 search with ef candidates
	candidates := h.searchLayer(query, entryPoints, ef, 0)

	results := make([]core.SearchResult, 0, len(candidates))
	for _, node := range candidates {
		if !matchesFilter(node.Product.Metadata, filter) {
			continue
		}

		similarity, err := core.CosineSimilarity(query, node.Product.Embedding)
		if err != nil {
			continue
		}

		results = append(results, core.SearchResult{
			ProductID: node.ID,
			Score:     core.ClampScore(similarity),
			Metadata:  node.Product.Metadata,
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

// Delete removes a product from the graph.
func (h *HNSWIndex) Delete(id string) error {
	h.graph.mu.Lock()
	defer h.graph.mu.Unlock()

	if _, exists := h.graph.nodes[id]; !exists {
		return fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
	}
	h.removeLocked(id)
	return nil
}

func (h *HNSWIndex) removeLocked(id string) {
	node := h.graph.nodes[id]

	for level, connections := range node.Connections {
		for connID := range connections {
			if connNode, exists := h.graph.nodes[connID]; exists {
				connNode.RemoveConnection(id, level)
			}
		}
	}

	delete(h.graph.nodes, id)
	h.graph.size--

	if h.graph.entryPoint != nil && h.graph.entryPoint.ID == id {
		h.findNewEntryPoint()
	}
}

// findNewEntryPoint picks the highest-level surviving node.
func (h *HNSWIndex) findNewEntryPoint() {
	h.graph.entryPoint = nil
	maxLevel := -1

	for _, node := range h.graph.nodes {
		if node.Level > maxLevel {
			maxLevel = node.Level
			h.graph.entryPoint = node
		}
	}
}

// Get returns a product by id.
func (h *HNSWIndex) Get(id string) (core.Product, bool) {
	h.graph.mu.RLock()
	defer h.graph.mu.RUnlock()
	node, exists := h.graph.nodes[id]
	if !exists {
		return core.Product{}, false
	}
	return node.Product, true
}

// Size returns the number of products in the index.
func (h *HNSWIndex) Size() int {
	h.graph.mu.RLock()
	defer h.graph.mu.RUnlock()
	return h.graph.size
}

// Type returns the index type.
func (h *HNSWIndex) Type() string {
	return "hnsw"
}

// hnswState is the serializable form of the graph. Rebuilding from products
// keeps serialization simple and the on-disk format independent of graph
// internals.
type hnswState struct {
	Products  []core.Product `json:"products"`
	Dimension int            `json:"dimension"`
	Config    HNSWConfig     `json:"config"`
}

// Serialize converts the index state to bytes.
func (h *HNSWIndex) Serialize() ([]byte, error) {
	h.graph.mu.RLock()
	defer h.graph.mu.RUnlock()

	products := make([]core.Product, 0, h.graph.size)
	for _, node := range h.graph.nodes {
		products = append(products, node.Product)
	}

	return json.Marshal(hnswState{
		Products:  products,
		Dimension: h.graph.dimension,
		Config:    h.graph.config,
	})
}

// Deserialize rebuilds the graph from a serialized snapshot.
func (h *HNSWIndex) Deserialize(data []byte) error {
	var state hnswState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal hnsw index state: %w", err)
	}

	h.graph = newHNSWGraph(state.Dimension, state.Config)
	for _, p := range state.Products {
		if err := h.Add(p); err != nil {
			return fmt.Errorf("failed to rebuild hnsw graph: %w", err)
		}
	}

	return nil
}
