package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/infra/llm/chatgpt"
)

// maxBatchTokens stays well below the provider's 300k cap per request.
const maxBatchTokens = 200_000

// ChatGPTEmbedder calls an OpenAI-compatible embeddings API.
type ChatGPTEmbedder struct {
	client    *chatgpt.Client
	model     string
	batchSize int
	tokens    evaluator.TokenCounter
	logger    *slog.Logger
}

// NewChatGPTEmbedder constructs an embedder backed by the chat client.
// tokens may be nil; a conservative estimate is used instead.
func NewChatGPTEmbedder(client *chatgpt.Client, model string, batchSize int, tokens evaluator.TokenCounter, logger *slog.Logger) *ChatGPTEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 64
	}
	return &ChatGPTEmbedder{
		client:    client,
		model:     strings.TrimSpace(model),
		batchSize: batchSize,
		tokens:    tokens,
		logger:    logger.With("component", "embedder.chatgpt"),
	}
}

// Embed requests embeddings for texts, batching by count and token budget.
func (e *ChatGPTEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out         = make([][]float32, 0, len(texts))
		batch       []string
		batchTokens int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{Model: e.model, Input: batch})
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return fmt.Errorf("embedding result count mismatch: expected %d, got %d", len(batch), len(resp.Data))
		}
		vectors := make([][]float32, len(batch))
		for i, item := range resp.Data {
			idx := item.Index
			if idx < 0 || idx >= len(batch) || vectors[idx] != nil {
				idx = i
			}
			vec := make([]float32, len(item.Embedding))
			copy(vec, item.Embedding)
			vectors[idx] = vec
		}
		out = append(out, vectors...)
		batch = batch[:0]
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		tokens := e.count(text)
		if tokens > maxBatchTokens {
			return nil, fmt.Errorf("text too large for embedding request: tokens=%d", tokens)
		}
		if len(batch) > 0 && (batchTokens+tokens > maxBatchTokens || len(batch) >= e.batchSize) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	e.logger.Debug("embedded texts", "count", len(out), "model", e.model)
	return out, nil
}

func (e *ChatGPTEmbedder) count(text string) int {
	if e.tokens != nil {
		return e.tokens.Count(text)
	}
	return estimateTokens(text)
}

var _ evaluator.Embedder = (*ChatGPTEmbedder)(nil)

// estimateTokens is an upper-biased count: one token per two runes, never
// below the word count.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}
