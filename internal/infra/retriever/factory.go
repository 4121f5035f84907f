package retriever

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
)

// Factory builds per-run indexes. Similarity search uses pgvector when a
// pool is configured and memory otherwise.
type Factory struct {
	pool *pgxpool.Pool
}

// NewFactory constructs a factory; pool may be nil.
func NewFactory(pool *pgxpool.Pool) *Factory {
	return &Factory{pool: pool}
}

// NewIndex returns an empty index for kind.
func (f *Factory) NewIndex(_ context.Context, kind evalconfig.Retriever, embedder evaluator.Embedder) (evaluator.Index, error) {
	switch kind {
	case evalconfig.RetrieverTFIDF:
		return NewTFIDFIndex(), nil
	case evalconfig.RetrieverSimilarity:
		if embedder == nil {
			return nil, errors.New("similarity search requires an embedder")
		}
		if f.pool != nil {
			return NewPgvectorIndex(f.pool, embedder), nil
		}
		return NewVectorIndex(embedder), nil
	default:
		return nil, fmt.Errorf("unsupported retriever %q", kind)
	}
}

var _ evaluator.IndexFactory = (*Factory)(nil)
