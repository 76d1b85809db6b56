package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaio/stylist/core"
)

func emptySession() *core.Session {
	return &core.Session{ID: "test", ActiveFilter: core.Filter{Gender: core.GenderBoth}}
}

func sessionWithResults(itemType string, ids ...string) *core.Session {
	sess := emptySession()
	sess.LastItemType = itemType
	group := core.QueryGroup{Label: "previous"}
	for i, id := range ids {
		group.Results = append(group.Results, core.SearchResult{
			ProductID: id,
			Rank:      i + 1,
			Metadata:  core.ProductMetadata{Title: "Item " + id},
		})
	}
	sess.LastResults = []core.QueryGroup{group}
	return sess
}

func TestClassifyGreeting(t *testing.T) {
	c := NewClassifier(nil, nil)

	for _, text := range []string{"hello", "Hi!", "good morning", "thanks"} {
		got := c.Classify(text, false, emptySession())
		assert.Equal(t, core.IntentGreeting, got.Intent, "text %q", text)
	}

	// A greeting that carries a product request is a search, not small talk.
	got := c.Classify("hello, show me some dresses", false, emptySession())
	assert.Equal(t, core.IntentSearch, got.Intent)
}

func TestClassifyGenderDetection(t *testing.T) {
	c := NewClassifier(nil, nil)

	tests := []struct {
		text     string
		gender   core.Gender
		fromText bool
	}{
		{"dresses for women", core.GenderFemale, true},
		{"shirts for men", core.GenderMale, true},
		{"a watch for him and a scarf for her", core.GenderBoth, true},
		{"blue denim jackets", core.GenderBoth, false},
	}
	for _, tt := range tests {
		got := c.Classify(tt.text, false, emptySession())
		assert.Equal(t, tt.gender, got.Gender, "text %q", tt.text)
		assert.Equal(t, tt.fromText, got.GenderFromText, "text %q", tt.text)
	}
}

func TestClassifySimpleSearch(t *testing.T) {
	c := NewClassifier(nil, nil)

	got := c.Classify("boho chic dresses for women", false, emptySession())
	require.Equal(t, core.IntentSearch, got.Intent)
	require.Len(t, got.SubQueries, 1)
	assert.Equal(t, "boho chic dresses for women", got.SubQueries[0].Text)
	assert.Equal(t, "dress", got.ItemType)
	assert.Equal(t, core.GenderFemale, got.Gender)
}

func TestClassifyImageOnly(t *testing.T) {
	c := NewClassifier(nil, nil)

	for _, text := range []string{"", "similar", "like this"} {
		got := c.Classify(text, true, emptySession())
		require.Equal(t, core.IntentSearch, got.Intent, "text %q", text)
		require.Len(t, got.SubQueries, 1)
		assert.Equal(t, "Similar items", got.SubQueries[0].Label)
		assert.Empty(t, got.SubQueries[0].Text)
	}

	// The same text without an image is not searchable.
	got := c.Classify("", false, emptySession())
	assert.Equal(t, core.IntentUnknown, got.Intent)
}

func TestClassifyFollowUpMerge(t *testing.T) {
	c := NewClassifier(nil, nil)
	sess := sessionWithResults("tshirt", "p1", "p2")

	got := c.Classify("white", false, sess)
	require.Equal(t, core.IntentSearch, got.Intent)
	assert.Equal(t, "white tshirt", got.MergedText)
	assert.Equal(t, "tshirt", got.ItemType)
	require.Len(t, got.SubQueries, 1)
	assert.Equal(t, "white tshirt", got.SubQueries[0].Text)

	// Without a remembered item type the bare color is not a follow-up.
	got = c.Classify("white", false, emptySession())
	assert.Empty(t, got.MergedText)
}

func TestClassifyThisButRefinement(t *testing.T) {
	c := NewClassifier(nil, nil)
	sess := sessionWithResults("dress", "p1", "p2", "p3")

	got := c.Classify("this but in red", false, sess)
	require.Equal(t, core.IntentSearch, got.Intent)
	require.NotNil(t, got.Refinement)
	assert.Equal(t, "p1", got.Refinement.ProductID, "anchors on the top prior result")
	assert.Equal(t, "red", got.Refinement.Text)

	// With no prior results the phrase falls through to a plain search.
	got = c.Classify("this but in red", false, emptySession())
	assert.Nil(t, got.Refinement)
}

func TestClassifyThisButWithImage(t *testing.T) {
	c := NewClassifier(nil, nil)

	// An upload anchors the phrase even on a brand-new session.
	got := c.Classify("this but in red leather", true, emptySession())
	require.Equal(t, core.IntentSearch, got.Intent)
	assert.Nil(t, got.Refinement)
	require.Len(t, got.SubQueries, 1)
	assert.Equal(t, "red leather", got.SubQueries[0].Text)

	// With prior results too, the upload wins over the result anchor.
	got = c.Classify("this but in red leather", true, sessionWithResults("dress", "p1"))
	require.Equal(t, core.IntentSearch, got.Intent)
	assert.Nil(t, got.Refinement)
	require.Len(t, got.SubQueries, 1)
	assert.Equal(t, "red leather", got.SubQueries[0].Text)
	assert.Equal(t, "dress", got.ItemType)
}

func TestClassifyOutfitDecomposition(t *testing.T) {
	c := NewClassifier(nil, nil)

	got := c.Classify("wedding outfit for men", false, emptySession())
	require.Equal(t, core.IntentSearch, got.Intent)
	require.Len(t, got.SubQueries, 5)

	categories := make([]string, 0, len(got.SubQueries))
	for _, sq := range got.SubQueries {
		categories = append(categories, sq.Category)
	}
	assert.Equal(t, []string{"top", "bottom", "footwear", "accessories", "watches"}, categories)
	assert.Equal(t, "wedding outfit for men top", got.SubQueries[0].Text)
	assert.Equal(t, "wedding outfit for men watch", got.SubQueries[4].Text)
	assert.Equal(t, core.GenderMale, got.Gender)
}

func TestClassifyCompoundSplit(t *testing.T) {
	c := NewClassifier(nil, nil)

	got := c.Classify("red top and blue sneakers", false, emptySession())
	require.Equal(t, core.IntentSearch, got.Intent)
	require.Len(t, got.SubQueries, 2)
	assert.Equal(t, "red top", got.SubQueries[0].Text)
	assert.Equal(t, "blue sneakers", got.SubQueries[1].Text)
}

func TestClassifyTryOn(t *testing.T) {
	c := NewClassifier(nil, nil)
	sess := sessionWithResults("dress", "p1", "p2", "p3")

	got := c.Classify("can i try on the second one", false, sess)
	require.Equal(t, core.IntentTryOn, got.Intent)
	require.NotNil(t, got.Refinement)
	assert.Equal(t, "p2", got.Refinement.ProductID)

	// Without an ordinal the selection is left to the router.
	got = c.Classify("let me try it on", false, sess)
	require.Equal(t, core.IntentTryOn, got.Intent)
	assert.Nil(t, got.Refinement)
}

func TestClassifyAdviceIsChat(t *testing.T) {
	c := NewClassifier(nil, nil)

	got := c.Classify("what should i wear to a job interview", false, emptySession())
	assert.Equal(t, core.IntentChat, got.Intent)
}

func TestClassifyOffTopicIsUnknown(t *testing.T) {
	c := NewClassifier(nil, nil)

	got := c.Classify("tell me about the stock market", false, emptySession())
	assert.Equal(t, core.IntentUnknown, got.Intent)
}

func TestClassifyVocabularyExtension(t *testing.T) {
	c := NewClassifier(nil, nil)
	sess := sessionWithResults("tshirt", "p1")

	// Unknown color: neither a fashion term nor an attribute.
	got := c.Classify("maroon", false, sess)
	assert.Equal(t, core.IntentUnknown, got.Intent)

	c.SetVocabulary([]string{"Kurti"}, []string{"Maroon"})

	got = c.Classify("maroon", false, sess)
	require.Equal(t, core.IntentSearch, got.Intent)
	assert.Equal(t, "maroon tshirt", got.MergedText)

	got = c.Classify("maroon kurti", false, emptySession())
	assert.Equal(t, core.IntentSearch, got.Intent)
}
