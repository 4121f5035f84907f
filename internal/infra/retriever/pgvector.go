package retriever

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
)

// ChunkSchema creates the table backing PgvectorIndex.
const ChunkSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS evaluator_chunks (
	index_id    UUID    NOT NULL,
	document    TEXT    NOT NULL,
	chunk_index INT     NOT NULL,
	content     TEXT    NOT NULL,
	token_count INT     NOT NULL,
	embedding   vector  NOT NULL
);
CREATE INDEX IF NOT EXISTS evaluator_chunks_index_id ON evaluator_chunks (index_id);
`

// PgvectorIndex stores the chunks of one run in Postgres and ranks them by
// L2 distance through pgvector. Rows are scoped by a per-index id and removed
// on Close.
type PgvectorIndex struct {
	pool     *pgxpool.Pool
	embedder evaluator.Embedder
	id       uuid.UUID
}

// NewPgvectorIndex constructs an index scoped to a fresh id.
func NewPgvectorIndex(pool *pgxpool.Pool, embedder evaluator.Embedder) *PgvectorIndex {
	return &PgvectorIndex{pool: pool, embedder: embedder, id: uuid.New()}
}

// Add embeds chunks and inserts them in one batch.
func (x *PgvectorIndex) Add(ctx context.Context, chunks []evaluator.Chunk) error {
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
	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		batch.Queue(`
			INSERT INTO evaluator_chunks (index_id, document, chunk_index, content, token_count, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, x.id, chunk.Document, chunk.Index, chunk.Content, chunk.TokenCount, pgvector.NewVector(vectors[i]))
	}
	if err := x.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

// Search returns the k nearest chunks. Score is 1/(1+distance).
func (x *PgvectorIndex) Search(ctx context.Context, query string, k int) ([]evaluator.ScoredChunk, error) {
	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	if k <= 0 {
		k = 4
	}
	rows, err := x.pool.Query(ctx, `
		SELECT document, chunk_index, content, token_count,
			(1.0 / (1.0 + (embedding <-> $1))) AS score
		FROM evaluator_chunks
		WHERE index_id = $2
		ORDER BY (embedding <-> $1) ASC
		LIMIT $3
	`, pgvector.NewVector(vectors[0]), x.id, k)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var hits []evaluator.ScoredChunk
	for rows.Next() {
		var hit evaluator.ScoredChunk
		if err := rows.Scan(&hit.Chunk.Document, &hit.Chunk.Index, &hit.Chunk.Content, &hit.Chunk.TokenCount, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Close deletes the index's rows.
func (x *PgvectorIndex) Close(ctx context.Context) error {
	_, err := x.pool.Exec(ctx, `DELETE FROM evaluator_chunks WHERE index_id = $1`, x.id)
	return err
}

var _ evaluator.Index = (*PgvectorIndex)(nil)
