package index

import "math"

// HNSWConfig contains configuration parameters for the HNSW index.
type HNSWConfig struct {
	// M is the number of bi-directional links for every new element during
	// construction. Higher M gives better recall but slower construction and
	// more memory. Typical values: 16-64.
	M int

	// MMax is the maximum number of connections for level > 0. Usually M.
	MMax int

	// ML is the level normalization factor used in level assignment:
	// level = floor(-ln(unif(0,1)) * mL). Typical value: 1/ln(2).
	ML float64

	// EfConstruction is the size of the dynamic candidate list during build.
	EfConstruction int

	// EfSearch is the size of the dynamic candidate list for search.
	// Should be >= k.
	EfSearch int

	// MaxLevels is the maximum number of levels in the graph.
	MaxLevels int

	// Seed for random level assignment, fixed for reproducible builds.
	Seed int64
}

// DefaultHNSWConfig returns a configuration with sensible defaults.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		M:              16,
		MMax:           16,
		ML:             1.0 / math.Log(2.0),
		EfConstruction: 200,
		EfSearch:       64,
		MaxLevels:      16,
		Seed:           42,
	}
}
