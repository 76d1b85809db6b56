package agent

import (
	"strings"
	"sync"

	"github.com/modaio/stylist/core"
)

// SubQuery is one decomposed search unit. Compound requests produce several,
// each becoming an independent QueryGroup.
type SubQuery struct {
	Label    string
	Text     string
	Category string
}

// Refinement is a resolved "this but X" reference: the anchor product from a
// prior turn plus the refinement text. It selects the early-fusion path.
type Refinement struct {
	ProductID string
	Text      string
}

// Classification is the derived per-turn routing decision. It is recomputed
// every turn from session context plus new input and never cached.
type Classification struct {
	Intent         core.Intent
	Gender         core.Gender
	GenderFromText bool
	SubQueries     []SubQuery
	Refinement     *Refinement
	// MergedText is set when a short attribute follow-up was combined with
	// the session's last item type ("white" -> "white tshirt").
	MergedText string
	ItemType   string
}

// Classifier turns raw turn input into a Classification using keyword rules
// extended by the catalog vocabulary. Safe for concurrent use; the vocabulary
// can be swapped in after catalog ingestion completes.
type Classifier struct {
	mu           sync.RWMutex
	fashionTerms map[string]struct{}
	attributes   map[string]struct{}
}

// NewClassifier builds a classifier. items and colors come from the catalog
// vocabulary and may be empty; the base keyword sets always apply.
func NewClassifier(items, colors []string) *Classifier {
	c := &Classifier{}
	c.SetVocabulary(items, colors)
	return c
}

// SetVocabulary replaces the catalog-derived keyword sets.
func (c *Classifier) SetVocabulary(items, colors []string) {
	fashionTerms := make(map[string]struct{})
	attributes := make(map[string]struct{})
	for _, kw := range baseFashionKeywords {
		fashionTerms[kw] = struct{}{}
	}
	for _, kw := range attributeKeywords {
		attributes[kw] = struct{}{}
	}
	for _, it := range items {
		fashionTerms[strings.ToLower(it)] = struct{}{}
	}
	for _, col := range colors {
		col = strings.ToLower(col)
		fashionTerms[col] = struct{}{}
		attributes[col] = struct{}{}
	}

	c.mu.Lock()
	c.fashionTerms = fashionTerms
	c.attributes = attributes
	c.mu.Unlock()
}

// matchKeywords checks text against a keyword set. Multiword phrases match as
// substrings; single words match on word boundaries, with simple plural forms,
// so "what" never matches "hat".
func matchKeywords(text string, keywords map[string]struct{}) bool {
	words := wordSet(text)
	for kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(text, kw) {
				return true
			}
			continue
		}
		if _, ok := words[kw]; ok {
			return true
		}
		if _, ok := words[kw+"s"]; ok {
			return true
		}
		if _, ok := words[kw+"es"]; ok {
			return true
		}
	}
	return false
}

func (c *Classifier) hasFashionTerm(text string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return matchKeywords(text, c.fashionTerms)
}

func (c *Classifier) hasAttribute(text string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return matchKeywords(text, c.attributes)
}

// Classify inspects the new turn against intent signals and the session's
// recent results. hasImage reports whether an image accompanied the turn.
func (c *Classifier) Classify(text string, hasImage bool, sess *core.Session) Classification {
	normalized := strings.ToLower(strings.TrimSpace(text))

	out := Classification{Intent: core.IntentUnknown}
	out.Gender, out.GenderFromText = detectGender(normalized)

	// Image with no usable text is a pure visual search.
	if normalized == "" || normalized == "similar" || normalized == "like this" || normalized == "same" {
		if hasImage {
			out.Intent = core.IntentSearch
			out.SubQueries = []SubQuery{{Label: "Similar items"}}
			return out
		}
		if normalized == "" {
			return out
		}
	}

	if isPureGreeting(normalized, c.hasFashionTerm) {
		out.Intent = core.IntentGreeting
		return out
	}

	if containsAny(normalized, tryOnPhrases) {
		out.Intent = core.IntentTryOn
		if ref, ok := ordinalReference(normalized, sess.LastResults); ok {
			out.Refinement = &Refinement{ProductID: ref.ProductID}
		}
		return out
	}

	// "this but in red" refines an anchor. An uploaded image is the anchor
	// itself; otherwise the reference resolves against prior results.
	if rest, ok := thisButRemainder(normalized); ok {
		if hasImage {
			out.Intent = core.IntentSearch
			out.ItemType = sess.LastItemType
			out.SubQueries = []SubQuery{{Label: rest, Text: rest}}
			return out
		}
		if len(sess.LastResults) > 0 {
			anchor := sess.LastResults[len(sess.LastResults)-1].Results
			if ref, okRef := ordinalReference(normalized, sess.LastResults); okRef {
				out.Refinement = &Refinement{ProductID: ref.ProductID, Text: rest}
			} else if len(anchor) > 0 {
				out.Refinement = &Refinement{ProductID: anchor[0].ProductID, Text: rest}
			}
			if out.Refinement != nil {
				out.Intent = core.IntentSearch
				out.ItemType = sess.LastItemType
				return out
			}
		}
	}

	// Short attribute-only text continues the previous search: merge with the
	// remembered item type.
	words := strings.Fields(normalized)
	if len(words) <= 2 && c.hasAttribute(normalized) && sess.LastItemType != "" && !hasImage {
		out.Intent = core.IntentSearch
		out.MergedText = normalized + " " + sess.LastItemType
		out.ItemType = sess.LastItemType
		out.SubQueries = []SubQuery{{Label: out.MergedText, Text: out.MergedText}}
		return out
	}

	fashion := c.hasFashionTerm(normalized)
	if !fashion && !hasImage {
		if containsAny(normalized, advicePhrases) {
			out.Intent = core.IntentChat
		}
		return out
	}

	out.Intent = core.IntentSearch
	out.ItemType = extractItemType(normalized)

	// Occasion-style requests decompose into a complete look.
	if containsAny(normalized, occasionWords) {
		out.SubQueries = make([]SubQuery, 0, len(outfitCategories))
		for _, oc := range outfitCategories {
			q := normalized + " " + oc.Term
			out.SubQueries = append(out.SubQueries, SubQuery{
				Label:    oc.Category,
				Text:     q,
				Category: oc.Category,
			})
		}
		return out
	}

	// Compound "top and shoes" splits into independent sub-queries when both
	// halves name catalog terms.
	if left, right, ok := splitCompound(normalized, c.hasFashionTerm); ok {
		out.SubQueries = []SubQuery{
			{Label: left, Text: left},
			{Label: right, Text: right},
		}
		return out
	}

	out.SubQueries = []SubQuery{{Label: normalized, Text: normalized}}
	return out
}

func splitCompound(text string, fashionTerm func(string) bool) (string, string, bool) {
	idx := strings.Index(text, " and ")
	if idx < 0 {
		return "", "", false
	}
	left := strings.TrimSpace(text[:idx])
	right := strings.TrimSpace(text[idx+len(" and "):])
	if left == "" || right == "" {
		return "", "", false
	}
	if !fashionTerm(left) || !fashionTerm(right) {
		return "", "", false
	}
	return left, right, true
}
