// Package catalog loads the product catalog, builds the ingestion
// vocabulary, and populates the vector index.
package catalog

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/modaio/stylist/core"
)

// Vocabulary holds the keyword sets extracted from catalog metadata. The
// intent classifier uses items and colors; health reporting exposes counts.
type Vocabulary struct {
	Items   []string `json:"items"`
	Colors  []string `json:"colors"`
	Brands  []string `json:"brands"`
	Genders []string `json:"genders"`
}

// BuildVocabulary extracts the vocabulary from product metadata.
func BuildVocabulary(products []core.Product) *Vocabulary {
	items := make(map[string]struct{})
	colors := make(map[string]struct{})
	brands := make(map[string]struct{})
	genders := make(map[string]struct{})

	for _, p := range products {
		addTerm(items, p.Metadata.Category)
		addTerm(colors, p.Metadata.Color)
		addTerm(brands, p.Metadata.Brand)
		addTerm(genders, string(p.Metadata.Gender))
	}

	return &Vocabulary{
		Items:   sortedKeys(items),
		Colors:  sortedKeys(colors),
		Brands:  sortedKeys(brands),
		Genders: sortedKeys(genders),
	}
}

func addTerm(set map[string]struct{}, term string) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term != "" {
		set[term] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Stats returns the counts surfaced by the health endpoint.
func (v *Vocabulary) Stats() map[string]int {
	if v == nil {
		return map[string]int{"items": 0, "colors": 0, "brands": 0, "genders": 0}
	}
	return map[string]int{
		"items":   len(v.Items),
		"colors":  len(v.Colors),
		"brands":  len(v.Brands),
		"genders": len(v.Genders),
	}
}

// Marshal serializes the vocabulary for the persistence snapshot.
func (v *Vocabulary) Marshal() ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalVocabulary restores a vocabulary snapshot.
func UnmarshalVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
