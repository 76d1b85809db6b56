package index

import (
	"container/heap"

	"github.com/modaio/stylist/core"
)

// distanceNode pairs a node with its distance for priority queue operations.
type distanceNode struct {
	Node     *hnswNode
	Distance float32
}

// minHeap orders candidates closest-first.
type minHeap []*distanceNode

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].Distance < h[j].Distance }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) {
	*h = append(*h, x.(*distanceNode))
}

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// maxHeap orders the dynamic candidate list farthest-first.
type maxHeap []*distanceNode

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *maxHeap) Push(x any) {
	*h = append(*h, x.(*distanceNode))
}

func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// searchLayer performs greedy best-first search within one layer of the graph.
// Caller holds at least a read lock on the graph.
func (h *HNSWIndex) searchLayer(query []float32, entryPoints []*hnswNode, ef int, level int) []*hnswNode {
	visited := make(map[string]bool)
	candidates := &minHeap{}
	dynamic := &maxHeap{}

	for _, ep := range entryPoints {
		if visited[ep.ID] {
			continue
		}

		distance, err := core.CosineDistance(query, ep.Product.Embedding)
		if err != nil {
			continue
		}

		distNode := &distanceNode{Node: ep, Distance: distance}
		heap.Push(candidates, distNode)
		heap.Push(dynamic, distNode)
		visited[ep.ID] = true
	}

	for candidates.Len() > 0 {
		current := heap.Pop(candidates).(*distanceNode)

		// If the closest remaining candidate is farther than the worst of the
		// dynamic list, the layer is exhausted for this ef.
		if dynamic.Len() >= ef && current.Distance > (*dynamic)[0].Distance {
			break
		}

		for _, neighborID := range current.Node.GetConnections(level) {
			if visited[neighborID] {
				continue
			}

			neighbor, exists := h.graph.nodes[neighborID]
			if !exists {
				continue
			}

			distance, err := core.CosineDistance(query, neighbor.Product.Embedding)
			if err != nil {
				continue
			}

			visited[neighborID] = true

			if dynamic.Len() < ef {
				distNode := &distanceNode{Node: neighbor, Distance: distance}
				heap.Push(candidates, distNode)
				heap.Push(dynamic, distNode)
			} else if distance < (*dynamic)[0].Distance {
				heap.Pop(dynamic)
				distNode := &distanceNode{Node: neighbor, Distance: distance}
				heap.Push(candidates, distNode)
				heap.Push(dynamic, distNode)
			}
		}
	}

	results := make([]*hnswNode, dynamic.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(dynamic).(*distanceNode).Node
	}

	return results
}
