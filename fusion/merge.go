package fusion

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/modaio/stylist/core"
)

// mergeWeighted combines two per-modality ranked lists into one by weighted
// score sum. A product absent from one list contributes zero for that
// modality. Ties break on ascending product id.
func mergeWeighted(textResults, imageResults []core.SearchResult, wText, wImage float32, k int) []core.SearchResult {
	scores := make(map[string]float32)
	meta := make(map[string]core.ProductMetadata)

	for _, r := range textResults {
		scores[r.ProductID] = wText * r.Score
		meta[r.ProductID] = r.Metadata
	}
	for _, r := range imageResults {
		scores[r.ProductID] += wImage * r.Score
		if _, seen := meta[r.ProductID]; !seen {
			meta[r.ProductID] = r.Metadata
		}
	}

	merged := make([]core.SearchResult, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, core.SearchResult{
			ProductID: id,
			Score:     core.ClampScore(score),
			Metadata:  meta[id],
		})
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ProductID < merged[j].ProductID
	})

	if k < len(merged) {
		merged = merged[:k]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}

	return merged
}

// cacheKey derives a deterministic key from every input that influences the
// ranking, including the index generation so writes invalidate stale entries.
func (e *Engine) cacheKey(q core.Query, wText, wImage float32, textVec, imageVec []float32) string {
	h := sha256.New()

	fmt.Fprintf(h, "%s|%s|%s|%d|%s|%f|%f|%d",
		q.Text, q.Filter.Gender, q.Filter.Category, q.K, q.Mode, wText, wImage, e.index.Generation())
	if q.Filter.Price != nil {
		fmt.Fprintf(h, "|%f|%f", q.Filter.Price.Min, q.Filter.Price.Max)
	}

	var buf [4]byte
	for _, vec := range [][]float32{textVec, imageVec} {
		h.Write([]byte{0})
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[:], uint32(int32(v*1e6)))
			h.Write(buf[:])
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}
