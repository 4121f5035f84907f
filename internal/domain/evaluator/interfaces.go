package evaluator

import (
	"context"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
)

// Backend runs an evaluation and reports each graded question through emit.
type Backend interface {
	Evaluate(ctx context.Context, req Request, emit func(QuestionResult)) (Summary, error)
}

// Message mirrors a simplified chat payload.
type Message struct {
	Role    string
	Content string
}

// LLM generates a completion for a chat transcript.
type LLM interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// LLMProvider resolves the chat model selected in the configuration.
type LLMProvider interface {
	ForModel(model evalconfig.Model) (LLM, error)
}

// Embedder produces embeddings for free form text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderProvider resolves the embedding algorithm selected in the configuration.
type EmbedderProvider interface {
	ForAlgorithm(alg evalconfig.EmbeddingAlgorithm) (Embedder, error)
}

// Splitter cuts text into chunks.
type Splitter interface {
	Split(text string) []string
}

// SplitterFactory builds a splitter for the configured method and sizes.
type SplitterFactory interface {
	NewSplitter(method evalconfig.SplitMethod, chunkSize, overlap int) (Splitter, error)
}

// Index stores the chunks of one run and answers retrieval queries.
type Index interface {
	Add(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, query string, k int) ([]ScoredChunk, error)
	Close(ctx context.Context) error
}

// IndexFactory builds an index for the configured retriever. embedder is nil
// for retrievers that do not need one.
type IndexFactory interface {
	NewIndex(ctx context.Context, kind evalconfig.Retriever, embedder Embedder) (Index, error)
}

// TextExtractor turns an uploaded file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (string, error)
}

// TokenCounter estimates the number of model tokens in text.
type TokenCounter interface {
	Count(text string) int
}
