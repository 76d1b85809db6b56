package core

import (
	"time"
)

// Gender is the catalog gender facet. GenderBoth matches every product.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderBoth   Gender = "both"
)

// ProductMetadata describes a catalog item. Immutable after ingestion.
type ProductMetadata struct {
	Title    string  `json:"title"`
	Brand    string  `json:"brand"`
	Price    float64 `json:"price"`
	Color    string  `json:"color"`
	Category string  `json:"category"`
	Gender   Gender  `json:"gender"`
	ImageRef string  `json:"image_ref"`
}

// Product is one catalog entry with its normalized embedding.
type Product struct {
	ID        string          `json:"id"`
	Embedding []float32       `json:"embedding"`
	Metadata  ProductMetadata `json:"metadata"`
}

// PriceRange is an inclusive [Min, Max] price filter.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Filter restricts search candidates by metadata.
type Filter struct {
	Gender   Gender      `json:"gender,omitempty"`
	Category string      `json:"category,omitempty"`
	Price    *PriceRange `json:"price,omitempty"`
}

// FusionMode selects how text and image signals are combined.
type FusionMode string

const (
	// FusionEarly combines modality vectors into one before the index lookup.
	FusionEarly FusionMode = "early"
	// FusionLate queries per modality and merges ranked lists by weighted score.
	FusionLate FusionMode = "late"
)

// Query is one fused search request, constructed per turn.
type Query struct {
	Text        string
	ImageVector []float32
	Filter      Filter
	WeightText  float32
	WeightImage float32
	K           int
	Mode        FusionMode
}

// HasText reports whether the query carries a text signal.
func (q Query) HasText() bool { return q.Text != "" }

// HasImage reports whether the query carries an image signal.
func (q Query) HasImage() bool { return len(q.ImageVector) > 0 }

// SearchResult is a single ranked hit. Score is a cosine similarity in [0, 1].
type SearchResult struct {
	ProductID string          `json:"product_id"`
	Score     float32         `json:"score"`
	Rank      int             `json:"rank"`
	Metadata  ProductMetadata `json:"metadata"`
}

// QueryGroup is one labeled, ranked result set for a single (sub-)query.
type QueryGroup struct {
	Label    string         `json:"label"`
	Category string         `json:"category"`
	Results  []SearchResult `json:"results"`
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one conversation entry.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TryOnState tracks a pending try-on request across turns.
type TryOnState string

const (
	TryOnAwaitingUpload TryOnState = "awaiting_upload"
	TryOnGenerating     TryOnState = "generating"
)

// PendingTryOn carries the garment selection until a person photo arrives.
type PendingTryOn struct {
	GarmentID string     `json:"garment_id"`
	State     TryOnState `json:"state"`
}

// Session is the ephemeral per-conversation state, keyed by an opaque id.
// Exactly one writer mutates a session at any instant; callers work on a
// clone and persist it only after the full turn pipeline succeeds.
type Session struct {
	ID           string        `json:"id"`
	Turns        []Turn        `json:"turns"`
	ActiveFilter Filter        `json:"active_filter"`
	LastResults  []QueryGroup  `json:"last_results"`
	PendingTryOn *PendingTryOn `json:"pending_tryon,omitempty"`
	LastItemType string        `json:"last_item_type,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Clone returns a deep copy safe to mutate without touching the stored session.
func (s *Session) Clone() *Session {
	c := *s
	c.Turns = append([]Turn(nil), s.Turns...)
	c.LastResults = make([]QueryGroup, len(s.LastResults))
	for i, g := range s.LastResults {
		g.Results = append([]SearchResult(nil), g.Results...)
		c.LastResults[i] = g
	}
	if s.PendingTryOn != nil {
		p := *s.PendingTryOn
		c.PendingTryOn = &p
	}
	return &c
}

// Intent is the classified purpose of a user turn.
type Intent string

const (
	IntentSearch   Intent = "search"
	IntentChat     Intent = "chat"
	IntentTryOn    Intent = "tryon"
	IntentGreeting Intent = "greeting"
	IntentUnknown  Intent = "unknown"
)
