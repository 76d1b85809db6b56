// Package compose builds the single reply payload for a turn from fusion
// results and/or stylist text.
package compose

import (
	"fmt"
	"strings"

	"github.com/modaio/stylist/core"
)

// FallbackPhrase is emitted when a turn produces neither results nor text.
const FallbackPhrase = "I couldn't find anything matching that just now. Could you try describing it differently?"

// Reply is the composed outcome of one turn.
type Reply struct {
	FinalResponse string            `json:"final_response"`
	Groups        []core.QueryGroup `json:"search_results_data,omitempty"`
}

// Composer merges result groups and stylist text into one reply. A reply is
// never empty: when both inputs are missing it carries the fallback phrase.
type Composer struct{}

// NewComposer returns a composer.
func NewComposer() *Composer { return &Composer{} }

// Compose builds the reply. Groups with zero results are dropped from the
// payload but still counted as "searched" when summarizing.
func (c *Composer) Compose(groups []core.QueryGroup, stylistText string) Reply {
	kept := make([]core.QueryGroup, 0, len(groups))
	total := 0
	for _, g := range groups {
		if len(g.Results) == 0 {
			continue
		}
		total += len(g.Results)
		kept = append(kept, g)
	}

	text := strings.TrimSpace(stylistText)
	if text == "" {
		switch {
		case total == 0:
			text = FallbackPhrase
		case len(kept) == 1:
			text = fmt.Sprintf("Here are %d matches for %q.", total, kept[0].Label)
		default:
			text = fmt.Sprintf("I put together %d picks across %d categories for you.", total, len(kept))
		}
	}

	return Reply{FinalResponse: text, Groups: kept}
}

// Greeting is the reply to a pure greeting turn.
func (c *Composer) Greeting() Reply {
	return Reply{FinalResponse: "Hi! I'm your personal stylist. Tell me what you're looking for, or upload a photo of something you like."}
}

// Redirect is the reply to an off-topic turn.
func (c *Composer) Redirect() Reply {
	return Reply{FinalResponse: "I can help with fashion: finding clothes, shoes and accessories, or styling advice. What are you looking for?"}
}

// TryOnPrompt asks for the person photo once a garment is selected.
func (c *Composer) TryOnPrompt(garmentTitle string) Reply {
	if garmentTitle == "" {
		return Reply{FinalResponse: "Sure! Upload a photo of yourself and I'll show you wearing it."}
	}
	return Reply{FinalResponse: fmt.Sprintf("Sure! Upload a photo of yourself and I'll show you wearing %q.", garmentTitle)}
}
