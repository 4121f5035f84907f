package retriever

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
)

// TFIDFIndex ranks chunks by cosine similarity of smoothed TF-IDF vectors.
// No embedder is involved.
type TFIDFIndex struct {
	mu     sync.Mutex
	chunks []evaluator.Chunk
	terms  []map[string]float64
	idf    map[string]float64
	dirty  bool
}

// NewTFIDFIndex constructs an empty index.
func NewTFIDFIndex() *TFIDFIndex {
	return &TFIDFIndex{}
}

// Add stores chunks; weights are recomputed on the next search.
func (x *TFIDFIndex) Add(_ context.Context, chunks []evaluator.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, c := range chunks {
		x.chunks = append(x.chunks, c)
		x.terms = append(x.terms, termCounts(c.Content))
	}
	x.dirty = true
	return nil
}

// Search returns the k chunks most similar to query.
func (x *TFIDFIndex) Search(_ context.Context, query string, k int) ([]evaluator.ScoredChunk, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.dirty || x.idf == nil {
		x.rebuild()
	}
	q := x.weigh(termCounts(query))
	hits := make([]evaluator.ScoredChunk, 0, len(x.chunks))
	for i, chunk := range x.chunks {
		hits = append(hits, evaluator.ScoredChunk{Chunk: chunk, Score: sparseCosine(q, x.weigh(x.terms[i]))})
	}
	return topK(hits, k), nil
}

// Close drops the corpus.
func (x *TFIDFIndex) Close(context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks, x.terms, x.idf = nil, nil, nil
	return nil
}

var _ evaluator.Index = (*TFIDFIndex)(nil)

// rebuild computes idf = ln((1+n)/(1+df)) + 1.
func (x *TFIDFIndex) rebuild() {
	df := make(map[string]int)
	for _, counts := range x.terms {
		for term := range counts {
			df[term]++
		}
	}
	n := float64(len(x.terms))
	x.idf = make(map[string]float64, len(df))
	for term, d := range df {
		x.idf[term] = math.Log((1+n)/(1+float64(d))) + 1
	}
	x.dirty = false
}

func (x *TFIDFIndex) weigh(counts map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(counts))
	for term, tf := range counts {
		if idf, ok := x.idf[term]; ok {
			out[term] = tf * idf
		}
	}
	return out
}

func sparseCosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for term, w := range a {
		dot += w * b[term]
		magA += w * w
	}
	for _, w := range b {
		magB += w * w
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func termCounts(text string) map[string]float64 {
	counts := make(map[string]float64)
	for _, tok := range tokenize(text) {
		counts[tok]++
	}
	return counts
}

// tokenize lowercases and keeps runs of letters and digits of two or more
// characters. CJK characters become single-rune tokens.
func tokenize(text string) []string {
	var (
		out  []string
		word []rune
	)
	flush := func() {
		if len(word) >= 2 {
			out = append(out, string(word))
		}
		word = word[:0]
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			out = append(out, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return out
}
