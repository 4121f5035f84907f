package embedder

import (
	"fmt"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
)

// Provider maps the form's embedding algorithms to embedders.
type Provider struct {
	embedders map[evalconfig.EmbeddingAlgorithm]evaluator.Embedder
	fallback  evaluator.Embedder
}

// NewProvider constructs a provider. Algorithms missing from embedders use
// fallback when it is set.
func NewProvider(embedders map[evalconfig.EmbeddingAlgorithm]evaluator.Embedder, fallback evaluator.Embedder) *Provider {
	copied := make(map[evalconfig.EmbeddingAlgorithm]evaluator.Embedder, len(embedders))
	for k, v := range embedders {
		copied[k] = v
	}
	return &Provider{embedders: copied, fallback: fallback}
}

// ForAlgorithm returns the embedder for alg.
func (p *Provider) ForAlgorithm(alg evalconfig.EmbeddingAlgorithm) (evaluator.Embedder, error) {
	if e, ok := p.embedders[alg]; ok {
		return e, nil
	}
	if p.fallback != nil {
		return p.fallback, nil
	}
	return nil, fmt.Errorf("embedding algorithm %q is not configured", alg)
}

var _ evaluator.EmbedderProvider = (*Provider)(nil)
