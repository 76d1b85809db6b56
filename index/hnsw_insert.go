package index

import (
	"sort"

	"github.com/modaio/stylist/core"
)

// insertNode wires a new node into the graph. Caller holds the write lock.
func (h *HNSWIndex) insertNode(newNode *hnswNode) error {
	entryPoints := []*hnswNode{h.graph.entryPoint}

	// Phase 1: descend from the top level to just above the new node's level
	for level := h.graph.entryPoint.Level; level > newNode.Level; level-- {
		entryPoints = h.searchLayer(newNode.Product.Embedding, entryPoints, 1, level)
	}

	// Phase 2: search and connect from the new node's level down to 0
	for level := minInt(newNode.Level, h.graph.entryPoint.Level); level >= 0; level-- {
		candidates := h.searchLayer(newNode.Product.Embedding, entryPoints, h.graph.config.EfConstruction, level)

		maxConn := h.graph.getMaxConnections(level)
		if level == 0 {
			maxConn = h.graph.config.M
		}

		selected := h.selectNeighbors(newNode, candidates, maxConn)

		for _, neighbor := range selected {
			newNode.AddConnection(neighbor.ID, level)
			neighbor.AddConnection(newNode.ID, level)
			h.pruneConnections(neighbor, level)
		}

		entryPoints = candidates
	}

	return nil
}

// selectNeighbors keeps the maxCount closest candidates.
func (h *HNSWIndex) selectNeighbors(node *hnswNode, candidates []*hnswNode, maxCount int) []*hnswNode {
	if len(candidates) <= maxCount {
		return candidates
	}

	distances := make([]distanceNode, len(candidates))
	for i, candidate := range candidates {
		distance, err := core.CosineDistance(node.Product.Embedding, candidate.Product.Embedding)
		if err != nil {
			distance = float32(1e9)
		}
		distances[i] = distanceNode{Node: candidate, Distance: distance}
	}

	sort.Slice(distances, func(i, j int) bool {
		return distances[i].Distance < distances[j].Distance
	})

	result := make([]*hnswNode, maxCount)
	for i := 0; i < maxCount; i++ {
		result[i] = distances[i].Node
	}

	return result
}

// pruneConnections trims a node back under its connection cap, dropping the
// farthest links first.
func (h *HNSWIndex) pruneConnections(node *hnswNode, level int) {
	maxConn := h.graph.getMaxConnections(level)
	connections := node.GetConnections(level)

	if len(connections) <= maxConn {
		return
	}

	distances := make([]distanceNode, 0, len(connections))
	for _, connID := range connections {
		connNode, exists := h.graph.nodes[connID]
		if !exists {
			continue
		}

		distance, err := core.CosineDistance(node.Product.Embedding, connNode.Product.Embedding)
		if err != nil {
			distance = float32(1e9)
		}
		distances = append(distances, distanceNode{Node: connNode, Distance: distance})
	}

	sort.Slice(distances, func(i, j int) bool {
		return distances[i].Distance < distances[j].Distance
	})

	for i := maxConn; i < len(distances); i++ {
		node.RemoveConnection(distances[i].Node.ID, level)
		distances[i].Node.RemoveConnection(node.ID, level)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
