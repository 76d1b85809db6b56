package agent

import (
	"regexp"
	"strings"

	"github.com/modaio/stylist/core"
)

// Lightweight rule-based intent signals. The classifier favors cheap keyword
// checks over model calls so routing stays deterministic and testable; the
// vocabulary extracted at catalog ingestion extends the base sets.

var greetingPatterns = []string{
	"hi", "hello", "hey", "hii", "hiii",
	"good morning", "good evening", "good afternoon", "good night",
	"what can you", "who are you", "what do you do", "help me",
	"greetings", "howdy", "sup", "yo", "hola",
	"thank you", "thanks", "bye", "goodbye", "see you",
	"how are you", "what's up", "whats up",
}

var baseFashionKeywords = []string{
	// clothing
	"shirt", "tshirt", "t-shirt", "dress", "jeans", "pants", "shorts",
	"jacket", "coat", "sweater", "hoodie", "skirt", "blouse", "top",
	"kurta", "saree", "lehenga", "suit", "blazer", "trouser", "legging",
	// accessories
	"watch", "bag", "shoe", "sandal", "heel", "sneaker", "boot",
	"sunglasses", "belt", "scarf", "hat", "cap", "jewelry",
	// action words
	"want", "need", "looking for", "find", "show", "search", "buy",
	"recommend", "suggest", "get me", "i need", "give me",
	// style words
	"casual", "formal", "party", "wedding", "summer", "winter", "outfit",
}

// attributeKeywords mark short follow-up refinements ("in white", "cheaper").
var attributeKeywords = []string{
	"white", "black", "red", "blue", "green", "yellow", "pink", "purple",
	"beige", "brown", "grey", "gray", "orange", "gold", "silver",
	"cheap", "cheaper", "expensive", "cotton", "silk", "denim", "leather",
	"casual", "formal", "summer", "winter",
}

var maleKeywords = []string{"men", "man", "male", "guy", "boy", "gentleman", "his", "he", "him"}

var femaleKeywords = []string{"women", "woman", "female", "girl", "lady", "her", "she"}

// itemTypes anchor follow-up merging: the last matched type is remembered per
// session so "white" after "show me tshirts" becomes "white tshirt".
var itemTypes = []string{
	"shirt", "tshirt", "jeans", "pants", "trousers", "dress", "skirt",
	"shoes", "sneakers", "boots", "heels", "jacket", "coat", "blazer",
	"watch", "bag", "handbag", "belt", "scarf", "hat", "cap",
	"suit", "tuxedo", "shorts", "leggings", "sweater", "hoodie",
}

var tryOnPhrases = []string{
	"try on", "try it on", "try this on", "try that on",
	"how would this look on me", "see it on me", "virtual try",
	"wear it", "put it on me",
}

var advicePhrases = []string{
	"what should i wear", "how do i style", "how to style", "does this go with",
	"what goes with", "advice", "opinion", "what do you think", "style tips",
	"help me decide", "which one", "is it ok to wear",
}

var occasionWords = []string{
	"outfit", "look for", "wedding", "party", "office", "interview",
	"date night", "vacation", "beach", "festival", "complete look",
}

// outfitCategories is the fixed decomposition for recommendation requests.
// Watches are always part of a complete look.
var outfitCategories = []struct {
	Category string
	Term     string
}{
	{"top", "top"},
	{"bottom", "pants"},
	{"footwear", "shoes"},
	{"accessories", "accessories"},
	{"watches", "watch"},
}

var (
	ordinalWords = map[string]int{
		"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
		"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
		"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
	}
	ordinalRe = regexp.MustCompile(`(?:the\s+)?(\w+)\s+(?:one|item|product|result)`)
	numberRe  = regexp.MustCompile(`#(\d+)|number\s+(\d+)|item\s+(\d+)`)
	thisButRe = regexp.MustCompile(`(?:this|that|it|these)\s+but\s+(.+)$`)
)

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func wordSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func anyWord(words map[string]struct{}, keywords []string) bool {
	for _, kw := range keywords {
		if _, ok := words[kw]; ok {
			return true
		}
	}
	return false
}

// detectGender pulls a gender signal out of the query text. Returns false
// when the text mentions no gender, so a caller-supplied filter can apply.
func detectGender(text string) (core.Gender, bool) {
	words := wordSet(text)
	male := anyWord(words, maleKeywords)
	female := anyWord(words, femaleKeywords)
	switch {
	case male && female:
		return core.GenderBoth, true
	case male:
		return core.GenderMale, true
	case female:
		return core.GenderFemale, true
	default:
		return core.GenderBoth, false
	}
}

func isPureGreeting(text string, fashionTerm func(string) bool) bool {
	for _, p := range greetingPatterns {
		if text == p || strings.HasPrefix(text, p) {
			if !fashionTerm(text) {
				return true
			}
		}
	}
	return false
}

// ordinalReference resolves "the second one" / "#3" style references against
// the most recent result group. Returns false when nothing matches.
func ordinalReference(text string, last []core.QueryGroup) (core.SearchResult, bool) {
	if len(last) == 0 {
		return core.SearchResult{}, false
	}
	n := 0
	if m := ordinalRe.FindStringSubmatch(text); m != nil {
		if v, ok := ordinalWords[m[1]]; ok {
			n = v
		}
	}
	if n == 0 {
		if m := numberRe.FindStringSubmatch(text); m != nil {
			for _, g := range m[1:] {
				if g != "" {
					n = atoiSafe(g)
					break
				}
			}
		}
	}
	if n == 0 {
		return core.SearchResult{}, false
	}
	results := last[len(last)-1].Results
	if n > len(results) {
		return core.SearchResult{}, false
	}
	return results[n-1], true
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// thisButRemainder extracts the refinement text from "this but in red"
// phrasing; this drives the early-fusion path.
func thisButRemainder(text string) (string, bool) {
	m := thisButRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	rest := strings.TrimSpace(m[1])
	rest = strings.TrimPrefix(rest, "in ")
	if rest == "" {
		return "", false
	}
	return rest, true
}

func extractItemType(text string) string {
	words := wordSet(text)
	for _, it := range itemTypes {
		if _, ok := words[it]; ok {
			return it
		}
		// plural forms: "tshirts", "watches"
		if _, ok := words[it+"s"]; ok {
			return it
		}
		if _, ok := words[it+"es"]; ok {
			return it
		}
	}
	return ""
}
