package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/storage"
)

const vectorSchemaTmpl = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_id BIGINT PRIMARY KEY,
	document_id BIGINT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	embedding vector(%d)
);

CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_embedding ON chunk_embeddings
	USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);
`

const upsertEmbeddingSQL = `
INSERT INTO chunk_embeddings (chunk_id, document_id, content, embedding)
VALUES ($1, $2, $3, $4)
ON CONFLICT (chunk_id) DO UPDATE SET
	document_id = EXCLUDED.document_id,
	content = EXCLUDED.content,
	embedding = EXCLUDED.embedding`

const searchSQL = `
SELECT chunk_id, document_id, content, 1 - (embedding <=> $1) AS score
FROM chunk_embeddings
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1
LIMIT $2`

type vectorStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewVectorStore connects to PostgreSQL, enables the pgvector extension,
// and ensures the embedding table and index exist. The store keeps its
// own pool: it never shares a transaction with the document store.
func NewVectorStore(ctx context.Context, connString string, opts ...Option) (storage.VectorStore, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, vectorSchema(cfg.dimensions, cfg.lists)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create embedding table: %w", err)
	}

	cfg.logger.Debug("vector store ready", "dimensions", cfg.dimensions)
	return &vectorStore{pool: pool, logger: cfg.logger}, nil
}

func vectorSchema(dimensions, lists int) string {
	return fmt.Sprintf(vectorSchemaTmpl, dimensions, lists)
}

// UpsertEmbeddings writes one row per embedded chunk. Chunks that never
// received a vector are skipped; the reconciliation sweep fills them in
// later.
func (s *vectorStore) UpsertEmbeddings(ctx context.Context, chunks []*core.Chunk) error {
	embedded := embeddable(chunks)
	if len(embedded) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, chunk := range embedded {
		batch.Queue(upsertEmbeddingSQL,
			idToDB(chunk.Id), idToDB(chunk.DocumentId), chunk.Content,
			pgvector.NewVector(chunk.Embedding))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d embeddings: %w", len(embedded), err)
	}
	return nil
}

func (s *vectorStore) Search(ctx context.Context, vector []float32, limit int) ([]*storage.SearchHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	rows, err := s.pool.Query(ctx, searchSQL, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []*storage.SearchHit
	for rows.Next() {
		var (
			chunkID, docID int64
			hit            storage.SearchHit
		)
		if err := rows.Scan(&chunkID, &docID, &hit.Content, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hit.ChunkId = idFromDB(chunkID)
		hit.DocumentId = idFromDB(docID)
		hits = append(hits, &hit)
	}
	return hits, rows.Err()
}

func (s *vectorStore) Close() error {
	s.pool.Close()
	return nil
}

// embeddable filters out chunks without a vector.
func embeddable(chunks []*core.Chunk) []*core.Chunk {
	var out []*core.Chunk
	for _, chunk := range chunks {
		if len(chunk.Embedding) > 0 {
			out = append(out, chunk)
		}
	}
	return out
}
