package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
)

// VectorIndex keeps embedded chunks in memory and ranks them by cosine
// similarity.
type VectorIndex struct {
	embedder evaluator.Embedder

	mu      sync.RWMutex
	chunks  []evaluator.Chunk
	vectors [][]float32
}

// NewVectorIndex constructs an empty index.
func NewVectorIndex(embedder evaluator.Embedder) *VectorIndex {
	return &VectorIndex{embedder: embedder}
}

// Add embeds and stores chunks.
func (x *VectorIndex) Add(ctx context.Context, chunks []evaluator.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := x.embedder.Embed(ctx, contents(chunks))
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks = append(x.chunks, chunks...)
	x.vectors = append(x.vectors, vectors...)
	return nil
}

// Search returns the k chunks closest to query.
func (x *VectorIndex) Search(ctx context.Context, query string, k int) ([]evaluator.ScoredChunk, error) {
	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	hits := make([]evaluator.ScoredChunk, 0, len(x.chunks))
	for i, chunk := range x.chunks {
		hits = append(hits, evaluator.ScoredChunk{Chunk: chunk, Score: cosineSimilarity(vectors[0], x.vectors[i])})
	}
	return topK(hits, k), nil
}

// Close releases the stored vectors.
func (x *VectorIndex) Close(context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks = nil
	x.vectors = nil
	return nil
}

var _ evaluator.Index = (*VectorIndex)(nil)

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	den := math.Sqrt(magA) * math.Sqrt(magB)
	if den == 0 {
		return 0
	}
	return dot / den
}

// topK sorts by score descending, keeping insertion order among ties.
func topK(hits []evaluator.ScoredChunk, k int) []evaluator.ScoredChunk {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func contents(chunks []evaluator.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}
