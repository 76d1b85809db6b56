package core

import "context"

// VectorIndex answers nearest-neighbor queries over product embeddings with
// metadata filters. It is constructed once at startup and a shared read-only
// handle is passed to the fusion engine; writes take an exclusive section but
// never block readers from completing on a consistent snapshot.
type VectorIndex interface {
	// Upsert adds or replaces a product. Rejects embeddings of the wrong dimension.
	Upsert(p Product) error

	// Query returns up to k results ordered by descending similarity, ties
	// broken by ascending product id. An empty index yields an empty list,
	// not an error.
	Query(vector []float32, k int, filter Filter) ([]SearchResult, error)

	// Remove deletes a product from the index.
	Remove(id string) error

	// Get returns a product by id.
	Get(id string) (Product, bool)

	// Size returns the number of indexed products.
	Size() int

	// Dimension returns the fixed embedding dimension.
	Dimension() int

	// Generation is a counter bumped on every write, used for cache invalidation.
	Generation() uint64

	// Serialize / Deserialize snapshot the index state for persistence.
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
}

// Embedder resolves text or image input to a normalized vector. It is an
// external collaborator; implementations bound concurrency and may retry.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
	Dimensions() int
}

// ChatModel produces stylist replies from bounded conversation history.
type ChatModel interface {
	Chat(ctx context.Context, turns []Turn) (string, error)
}

// TryOnRequest asks the rendering collaborator to place a garment on a person.
type TryOnRequest struct {
	PersonImage []byte
	// GarmentRef is the garment image as a URL or raw base64 payload,
	// typically the catalog product's image reference.
	GarmentRef    string
	RandomizeSeed bool
	Seed          int64
}

// TryOnRenderer generates a try-on image. Failures are retryable; the caller
// keeps the garment selection.
type TryOnRenderer interface {
	Render(ctx context.Context, req TryOnRequest) ([]byte, error)
}

// Transcriber converts spoken audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
