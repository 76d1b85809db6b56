package index

import (
	"github.com/modaio/stylist/core"
)

// NewVectorIndex builds the catalog index behind the core.VectorIndex
// interface. Construction happens once at startup; the handle is shared
// read-only with the fusion engine (no ambient globals).
func NewVectorIndex(dimension int, cfg CatalogConfig) core.VectorIndex {
	return NewCatalogIndex(dimension, cfg)
}
