// Package fusion combines text and image query signals into ranked catalog
// lookups. The engine is stateless per query group; decomposition into
// multiple groups is the router's decision.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/modaio/stylist/core"
)

// Config tunes fusion behavior.
type Config struct {
	// TextWeight and ImageWeight are the default modality weights when the
	// caller does not supply any. They need not sum to 1.
	TextWeight  float32 `yaml:"text_weight" json:"text_weight"`
	ImageWeight float32 `yaml:"image_weight" json:"image_weight"`

	// K is the default number of results per query group.
	K int `yaml:"k" json:"k"`

	// MinImageScore drops low-similarity hits on image-only searches.
	MinImageScore float32 `yaml:"min_image_score" json:"min_image_score"`

	// CacheSize bounds the fused-result LRU cache. Zero disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// DefaultConfig mirrors the production weighting: text dominates when both
// modalities are present.
func DefaultConfig() Config {
	return Config{
		TextWeight:    0.6,
		ImageWeight:   0.4,
		K:             5,
		MinImageScore: 0.5,
		CacheSize:     256,
	}
}

// Result is one executed query group plus execution annotations.
type Result struct {
	Group core.QueryGroup
	// DegradedModality names the modality that was dropped after an
	// embedding failure ("text" or "image"), empty when none.
	DegradedModality string
}

// Engine fuses query signals and issues index lookups.
type Engine struct {
	index    core.VectorIndex
	embedder core.Embedder
	cfg      Config
	cache    *lru.Cache[string, []core.SearchResult]
	logger   *slog.Logger
}

// NewEngine constructs a fusion engine over a shared read-only index handle.
func NewEngine(index core.VectorIndex, embedder core.Embedder, cfg Config, logger *slog.Logger) (*Engine, error) {
	if index == nil {
		return nil, core.ErrIndexUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.K <= 0 {
		cfg.K = DefaultConfig().K
	}

	e := &Engine{
		index:    index,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []core.SearchResult](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("fusion cache: %w", err)
		}
		e.cache = cache
	}

	return e, nil
}

// Run executes one query group. The query's weights are renormalized over the
// modalities actually present; a missing modality contributes zero. When one
// modality's embedding fails after retry, the search degrades to the
// surviving modality instead of failing the turn.
func (e *Engine) Run(ctx context.Context, q core.Query, label, category string) (Result, error) {
	if q.K <= 0 {
		q.K = e.cfg.K
	}
	if q.WeightText == 0 && q.WeightImage == 0 {
		q.WeightText = e.cfg.TextWeight
		q.WeightImage = e.cfg.ImageWeight
	}

	if err := core.ValidateQuery(q); err != nil {
		return Result{}, err
	}

	res := Result{Group: core.QueryGroup{Label: label, Category: category}}

	textVec, imageVec, degraded, err := e.resolveVectors(ctx, q)
	if err != nil {
		return Result{}, err
	}
	res.DegradedModality = degraded

	wText, wImage := renormalize(q.WeightText, q.WeightImage, textVec != nil, imageVec != nil)

	key := e.cacheKey(q, wText, wImage, textVec, imageVec)
	if e.cache != nil {
		if hits, ok := e.cache.Get(key); ok {
			res.Group.Results = hits
			return res, nil
		}
	}

	var results []core.SearchResult
	switch {
	case textVec != nil && imageVec != nil && q.Mode == core.FusionLate:
		results, err = e.lateFuse(ctx, q, textVec, imageVec, wText, wImage)
	case textVec != nil && imageVec != nil:
		results, err = e.earlyFuse(q, textVec, imageVec, wText, wImage)
	case textVec != nil:
		results, err = e.index.Query(textVec, q.K, q.Filter)
	default:
		results, err = e.imageOnly(imageVec, q)
	}
	if err != nil {
		if errors.Is(err, core.ErrInvalidDimension) || errors.Is(err, core.ErrValidation) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", core.ErrIndexUnavailable, err)
	}

	if e.cache != nil {
		e.cache.Add(key, results)
	}

	res.Group.Results = results
	return res, nil
}

// resolveVectors embeds the present modalities, degrading to the surviving
// one when a single embedding fails.
func (e *Engine) resolveVectors(ctx context.Context, q core.Query) (textVec, imageVec []float32, degraded string, err error) {
	var textErr error

	if q.HasText() && q.WeightText > 0 {
		textVec, textErr = e.embedder.EmbedText(ctx, q.Text)
		if textErr == nil {
			textVec = core.Normalize(textVec)
		}
	}
	if q.HasImage() && q.WeightImage > 0 {
		imageVec = core.Normalize(q.ImageVector)
	}

	if textErr != nil {
		if imageVec == nil {
			return nil, nil, "", fmt.Errorf("%w: %v", core.ErrEmbeddingFailure, textErr)
		}
		e.logger.Warn("text embedding failed, degrading to image-only search", "error", textErr)
		return nil, imageVec, "text", nil
	}
	if textVec == nil && imageVec == nil {
		return nil, nil, "", core.ErrEmptyQuery
	}

	return textVec, imageVec, "", nil
}

// earlyFuse combines both modality vectors into one before the lookup.
func (e *Engine) earlyFuse(q core.Query, textVec, imageVec []float32, wText, wImage float32) ([]core.SearchResult, error) {
	fused, err := core.WeightedSum(textVec, imageVec, wText, wImage)
	if err != nil {
		return nil, err
	}
	return e.index.Query(core.Normalize(fused), q.K, q.Filter)
}

// lateFuse queries each modality independently and merges the ranked lists by
// weighted score combination. Products missing from one list contribute a
// zero term for that modality.
func (e *Engine) lateFuse(ctx context.Context, q core.Query, textVec, imageVec []float32, wText, wImage float32) ([]core.SearchResult, error) {
	var textResults, imageResults []core.SearchResult

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		textResults, err = e.index.Query(textVec, q.K*2, q.Filter)
		return err
	})
	g.Go(func() error {
		var err error
		imageResults, err = e.index.Query(imageVec, q.K*2, q.Filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeWeighted(textResults, imageResults, wText, wImage, q.K), nil
}

// imageOnly performs a pure visual lookup with the minimum-score cutoff.
func (e *Engine) imageOnly(imageVec []float32, q core.Query) ([]core.SearchResult, error) {
	results, err := e.index.Query(imageVec, q.K, q.Filter)
	if err != nil {
		return nil, err
	}

	kept := results[:0]
	for _, r := range results {
		if r.Score >= e.cfg.MinImageScore {
			kept = append(kept, r)
		}
	}
	for i := range kept {
		kept[i].Rank = i + 1
	}
	return kept, nil
}

// renormalize rescales the weights over the modalities actually present so
// they sum to 1.
func renormalize(wText, wImage float32, hasText, hasImage bool) (float32, float32) {
	if !hasText {
		wText = 0
	}
	if !hasImage {
		wImage = 0
	}
	sum := wText + wImage
	if sum == 0 {
		return 0, 0
	}
	return wText / sum, wImage / sum
}
