package embedder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/infra/llm/chatgpt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeterministicEmbedderIsStableAndNormalized(t *testing.T) {
	e := NewDeterministicEmbedder(16)
	vecs, err := e.Embed(context.Background(), []string{"Go was designed at Google", "Go was designed at Google", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Equal(t, vecs[0], vecs[1])
	require.Len(t, vecs[0], 16)

	var sum float32
	for _, x := range vecs[0] {
		sum += x * x
	}
	require.InDelta(t, 1.0, sum, 1e-5)
	for _, x := range vecs[2] {
		require.Zero(t, x)
	}
}

func TestChatGPTEmbedderBatches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req chatgpt.EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		// Reply in reverse order to check reordering by index.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, item{Index: i, Embedding: []float32{float32(len(req.Input[i]))}})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client, err := chatgpt.NewClient("key", srv.URL, 0)
	require.NoError(t, err)
	e := NewChatGPTEmbedder(client, "text-embedding-ada-002", 2, nil, testLogger())

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1}, {2}, {3}}, vecs)
	require.Equal(t, int32(2), calls.Load())
}

func TestProvider(t *testing.T) {
	fallback := NewDeterministicEmbedder(8)
	p := NewProvider(map[evalconfig.EmbeddingAlgorithm]evaluator.Embedder{}, fallback)
	e, err := p.ForAlgorithm(evalconfig.EmbeddingOpenAI)
	require.NoError(t, err)
	require.Same(t, fallback, e)

	_, err = NewProvider(nil, nil).ForAlgorithm(evalconfig.EmbeddingHuggingFace)
	require.Error(t, err)
}

func TestEstimateTokens(t *testing.T) {
	require.Zero(t, estimateTokens(""))
	require.Equal(t, 3, estimateTokens("abcdef"))
	require.Equal(t, 4, estimateTokens("a b c d"))
}
