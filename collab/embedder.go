// Package collab holds clients for the external collaborators: embedding,
// chat, transcription and try-on rendering. Every client caps its outstanding
// calls with a weighted semaphore and retries transient failures once.
package collab

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/modaio/stylist/core"
)

// EmbedderConfig configures the OpenAI-compatible embedding client.
type EmbedderConfig struct {
	BaseURL    string `yaml:"base_url" json:"base_url"`
	APIKey     string `yaml:"api_key" json:"api_key"`
	TextModel  string `yaml:"text_model" json:"text_model"`
	ImageModel string `yaml:"image_model" json:"image_model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	// MaxConcurrent caps simultaneous outstanding embedding calls.
	MaxConcurrent int64 `yaml:"max_concurrent" json:"max_concurrent"`

	// RetryBackoff is the pause before the single retry.
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

// DefaultEmbedderConfig returns production defaults. The multimodal model
// embeds text and images into one space, so both modality models default to
// the same name.
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		TextModel:     "clip-vit-base-patch32",
		ImageModel:    "clip-vit-base-patch32",
		Dimensions:    512,
		MaxConcurrent: 8,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// Embedder resolves text and images to normalized vectors through an
// OpenAI-compatible embeddings endpoint. Implements core.Embedder.
type Embedder struct {
	client *openai.Client
	cfg    EmbedderConfig
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewEmbedder builds the embedding client.
func NewEmbedder(cfg EmbedderConfig, logger *slog.Logger) (*Embedder, error) {
	def := DefaultEmbedderConfig()
	if cfg.TextModel == "" {
		cfg.TextModel = def.TextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = def.ImageModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = def.Dimensions
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger,
	}, nil
}

// Dimensions returns the embedding dimension.
func (e *Embedder) Dimensions() int { return e.cfg.Dimensions }

// EmbedText embeds a text query. The result is L2-normalized so cosine
// similarity reduces to a dot product.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", core.ErrValidation)
	}
	return e.embed(ctx, text, e.cfg.TextModel)
}

// EmbedImage embeds raw image bytes, sent base64-encoded to the multimodal
// embedding model.
func (e *Embedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", core.ErrValidation)
	}
	encoded := base64.StdEncoding.EncodeToString(image)
	return e.embed(ctx, encoded, e.cfg.ImageModel)
}

func (e *Embedder) embed(ctx context.Context, input, model string) ([]float32, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingFailure, err)
	}
	defer e.sem.Release(1)

	req := openai.EmbeddingRequest{
		Input: []string{input},
		Model: openai.EmbeddingModel(model),
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		// One retry with backoff covers transient upstream hiccups.
		e.logger.Warn("embedding call failed, retrying once", "model", model, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingFailure, ctx.Err())
		case <-time.After(e.cfg.RetryBackoff):
		}
		resp, err = e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingFailure, err)
		}
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", core.ErrEmbeddingFailure)
	}
	vec := resp.Data[0].Embedding
	if len(vec) != e.cfg.Dimensions {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", core.ErrInvalidDimension, len(vec), e.cfg.Dimensions)
	}
	return core.Normalize(vec), nil
}
