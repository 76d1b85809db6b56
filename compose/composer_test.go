package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modaio/stylist/core"
)

func group(label string, ids ...string) core.QueryGroup {
	g := core.QueryGroup{Label: label}
	for i, id := range ids {
		g.Results = append(g.Results, core.SearchResult{ProductID: id, Rank: i + 1})
	}
	return g
}

func TestComposeFallback(t *testing.T) {
	c := NewComposer()

	reply := c.Compose(nil, "")
	assert.Equal(t, FallbackPhrase, reply.FinalResponse)
	assert.Empty(t, reply.Groups)

	// All-empty groups fall back too.
	reply = c.Compose([]core.QueryGroup{{Label: "nothing"}}, "")
	assert.Equal(t, FallbackPhrase, reply.FinalResponse)
	assert.Empty(t, reply.Groups)
}

func TestComposeSingleGroup(t *testing.T) {
	c := NewComposer()

	reply := c.Compose([]core.QueryGroup{group("red dresses", "p1", "p2", "p3")}, "")
	assert.Equal(t, `Here are 3 matches for "red dresses".`, reply.FinalResponse)
	assert.Len(t, reply.Groups, 1)
}

func TestComposeMultipleGroupsDropsEmpty(t *testing.T) {
	c := NewComposer()

	groups := []core.QueryGroup{
		group("top", "p1", "p2"),
		group("bottom"),
		group("footwear", "p3"),
	}
	reply := c.Compose(groups, "")
	assert.Equal(t, "I put together 3 picks across 2 categories for you.", reply.FinalResponse)
	assert.Len(t, reply.Groups, 2)
	assert.Equal(t, "top", reply.Groups[0].Label)
	assert.Equal(t, "footwear", reply.Groups[1].Label)
}

func TestComposeStylistTextWins(t *testing.T) {
	c := NewComposer()

	reply := c.Compose([]core.QueryGroup{group("tops", "p1")}, "  A linen shirt would work well here.  ")
	assert.Equal(t, "A linen shirt would work well here.", reply.FinalResponse)
	assert.Len(t, reply.Groups, 1)
}

func TestCannedReplies(t *testing.T) {
	c := NewComposer()

	assert.NotEmpty(t, c.Greeting().FinalResponse)
	assert.Contains(t, c.Redirect().FinalResponse, "fashion")
	assert.Contains(t, c.TryOnPrompt("Red Dress").FinalResponse, `"Red Dress"`)
	assert.NotEmpty(t, c.TryOnPrompt("").FinalResponse)
}
