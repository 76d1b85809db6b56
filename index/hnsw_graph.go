package index

import (
	"math/rand"
	"sync"

	"github.com/modaio/stylist/core"
)

// hnswNode represents a node in the HNSW graph.
type hnswNode struct {
	ID      string
	Product core.Product
	Level   int
	// Connections at each level: level -> set of connected node IDs
	Connections map[int]map[string]bool
}

func newHNSWNode(p core.Product, level int) *hnswNode {
	return &hnswNode{
		ID:          p.ID,
		Product:     p,
		Level:       level,
		Connections: make(map[int]map[string]bool),
	}
}

// AddConnection records a link to nodeID at the given level.
func (n *hnswNode) AddConnection(nodeID string, level int) {
	if n.Connections[level] == nil {
		n.Connections[level] = make(map[string]bool)
	}
	n.Connections[level][nodeID] = true
}

// RemoveConnection drops the link to nodeID at the given level.
func (n *hnswNode) RemoveConnection(nodeID string, level int) {
	if connections, exists := n.Connections[level]; exists {
		delete(connections, nodeID)
		if len(connections) == 0 {
			delete(n.Connections, level)
		}
	}
}

// GetConnections returns all connected node IDs at the given level.
func (n *hnswNode) GetConnections(level int) []string {
	connections, exists := n.Connections[level]
	if !exists {
		return nil
	}

	result := make([]string, 0, len(connections))
	for nodeID := range connections {
		result = append(result, nodeID)
	}
	return result
}

// hnswGraph holds the layered small-world graph.
type hnswGraph struct {
	mu         sync.RWMutex
	nodes      map[string]*hnswNode
	entryPoint *hnswNode
	config     HNSWConfig
	rng        *rand.Rand
	dimension  int
	size       int
}

func newHNSWGraph(dimension int, config HNSWConfig) *hnswGraph {
	return &hnswGraph{
		nodes:     make(map[string]*hnswNode),
		config:    config,
		rng:       rand.New(rand.NewSource(config.Seed)),
		dimension: dimension,
	}
}

// assignLevel draws a level from the exponential distribution scaled by ML.
func (g *hnswGraph) assignLevel() int {
	level := int(g.config.ML * g.rng.ExpFloat64())
	if level > g.config.MaxLevels-1 {
		level = g.config.MaxLevels - 1
	}
	return level
}

// getMaxConnections returns the connection cap for a given level.
func (g *hnswGraph) getMaxConnections(level int) int {
	if level == 0 {
		return g.config.M * 2 // Level 0 can hold more connections
	}
	return g.config.MMax
}
