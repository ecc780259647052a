// Package vecindex provides an in-process exact nearest-neighbor index over
// fixed-dimension item embeddings, with filtered search and a persisted
// artifact that survives restarts.
package vecindex

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/pkg/vecmath"
)

// Item is one indexable entry: an opaque id plus its embedding.
type Item struct {
	ID        string
	Embedding []float32
}

// Result is one search hit. Score is the inner product between the query and
// the item embedding: larger means more similar (embeddings are unit vectors,
// so this equals cosine similarity).
type Result struct {
	ItemID string
	Score  float64
}

// Index is an immutable flat index: built once from a corpus, then shared
// read-only across concurrent searches. Rebuilding produces a new Index.
type Index struct {
	dim     int
	ids     []string
	vectors [][]float32
}

// Build validates items and constructs an index over the survivors. Entries
// with a missing embedding, wrong dimension, or non-finite components are
// dropped with a warning; a corpus with some malformed items still yields a
// usable index. Returns an IndexBuildError when zero valid embeddings remain.
func Build(dim int, items []Item, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dim <= 0 {
		return nil, apperrors.NewIndexBuildError(fmt.Sprintf("invalid index dimension %d", dim))
	}

	idx := &Index{
		dim:     dim,
		ids:     make([]string, 0, len(items)),
		vectors: make([][]float32, 0, len(items)),
	}

	dropped := 0

	for _, item := range items {
		switch {
		case len(item.Embedding) == 0:
			logger.Warn("index build: skipping item without embedding", "item_id", item.ID)
			dropped++
		case len(item.Embedding) != dim:
			logger.Warn("index build: skipping item with wrong dimension",
				"item_id", item.ID, "expected_dim", dim, "got_dim", len(item.Embedding))
			dropped++
		case !vecmath.IsFinite(item.Embedding):
			logger.Warn("index build: skipping item with non-finite embedding", "item_id", item.ID)
			dropped++
		default:
			idx.ids = append(idx.ids, item.ID)
			idx.vectors = append(idx.vectors, item.Embedding)
		}
	}

	if len(idx.vectors) == 0 {
		return nil, apperrors.NewIndexBuildError(
			fmt.Sprintf("no valid embeddings to index (%d items, %d dropped)", len(items), dropped))
	}

	if dropped > 0 {
		logger.Warn("index build: dropped malformed items", "dropped", dropped, "indexed", len(idx.vectors))
	}

	return idx, nil
}

// Empty returns an index with zero vectors. Search against it degrades to "no
// results" instead of failing.
func Empty(dim int) *Index {
	return &Index{dim: dim}
}

// Dim returns the index dimension.
func (x *Index) Dim() int { return x.dim }

// Len returns the number of indexed items.
func (x *Index) Len() int { return len(x.ids) }

// Search returns up to topK items most similar to query that pass filter,
// in descending score order. A nil filter accepts everything.
//
// The whole corpus is ranked and then walked in rank order applying the
// filter, stopping once topK survivors are collected. That makes the
// over-fetch maximally generous: even a highly selective filter finds every
// survivor there is. Score ties keep their candidate rank (first-seen order),
// so evaluation order is deterministic for a deterministic corpus.
//
// Fewer than topK survivors after exhausting all candidates is not an error;
// the smaller list is returned.
func (x *Index) Search(query []float32, topK int, filter func(itemID string) bool) ([]Result, error) {
	if len(query) != x.dim {
		return nil, apperrors.NewDimensionMismatchError(x.dim, len(query))
	}

	if topK <= 0 {
		return nil, apperrors.NewValidationError("top_k", "top_k must be a positive integer")
	}

	if len(x.vectors) == 0 {
		return nil, nil
	}

	candidates := make([]Result, len(x.vectors))
	for i, vec := range x.vectors {
		candidates[i] = Result{ItemID: x.ids[i], Score: vecmath.Dot(query, vec)}
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	results := make([]Result, 0, topK)

	for _, cand := range candidates {
		if filter != nil && !filter(cand.ItemID) {
			continue
		}

		results = append(results, cand)
		if len(results) == topK {
			break
		}
	}

	return results, nil
}

// items returns the indexed entries in insertion order, for persistence.
func (x *Index) items() []Item {
	out := make([]Item, len(x.ids))
	for i := range x.ids {
		out[i] = Item{ID: x.ids[i], Embedding: x.vectors[i]}
	}

	return out
}
