package index

import (
	"sort"
	"strings"

	"github.com/modaio/stylist/core"
)

// matchesFilter checks if product metadata matches the given filter.
// An empty filter matches everything; GenderBoth matches every product and a
// catalog "unisex" item matches any gender filter.
func matchesFilter(meta core.ProductMetadata, filter core.Filter) bool {
	if filter.Gender != "" && filter.Gender != core.GenderBoth {
		g := meta.Gender
		if g != filter.Gender && g != core.GenderBoth && g != "" {
			return false
		}
	}

	if filter.Category != "" && !strings.EqualFold(meta.Category, filter.Category) {
		return false
	}

	if filter.Price != nil {
		if meta.Price < filter.Price.Min || meta.Price > filter.Price.Max {
			return false
		}
	}

	return true
}

// sortResults orders results by descending score, ties broken by ascending
// product id so that identical queries always rank identically.
func sortResults(results []core.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ProductID < results[j].ProductID
	})
}

// assignRanks stamps 1-based ranks after final ordering.
func assignRanks(results []core.SearchResult) {
	for i := range results {
		results[i].Rank = i + 1
	}
}
