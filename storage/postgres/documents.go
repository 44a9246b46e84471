package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/storage"
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id BIGINT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	project TEXT NOT NULL DEFAULT '',
	doc_type TEXT NOT NULL DEFAULT '',
	tags TEXT[] NOT NULL DEFAULT '{}',
	metadata JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents (project);

CREATE TABLE IF NOT EXISTS chunks (
	id BIGINT PRIMARY KEY,
	document_id BIGINT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
	chunk_index INT NOT NULL,
	start_offset BIGINT NOT NULL DEFAULT 0,
	end_offset BIGINT NOT NULL DEFAULT 0,
	time_offsets BOOLEAN NOT NULL DEFAULT false,
	content TEXT NOT NULL DEFAULT '',
	token_count INT NOT NULL DEFAULT 0,
	language TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id, chunk_index);
`

const upsertDocumentSQL = `
INSERT INTO documents (id, title, content, source, project, doc_type, tags, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	content = EXCLUDED.content,
	source = EXCLUDED.source,
	project = EXCLUDED.project,
	doc_type = EXCLUDED.doc_type,
	tags = EXCLUDED.tags,
	metadata = EXCLUDED.metadata,
	updated_at = EXCLUDED.updated_at`

const insertChunkSQL = `
INSERT INTO chunks (id, document_id, chunk_index, start_offset, end_offset, time_offsets, content, token_count, language)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const getDocumentSQL = `
SELECT id, title, content, source, project, doc_type, tags, metadata, created_at, updated_at
FROM documents
WHERE id = $1`

const getChunksSQL = `
SELECT id, document_id, chunk_index, start_offset, end_offset, time_offsets, content, token_count, language
FROM chunks
WHERE document_id = $1
ORDER BY chunk_index`

const getChunksByIDSQL = `
SELECT id, document_id, chunk_index, start_offset, end_offset, time_offsets, content, token_count, language
FROM chunks
WHERE id = ANY($1)
ORDER BY document_id, chunk_index`

type documentStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewDocumentStore connects to PostgreSQL and ensures the document and
// chunk tables exist.
func NewDocumentStore(ctx context.Context, connString string, opts ...Option) (storage.DocumentStore, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, documentsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create document tables: %w", err)
	}

	cfg.logger.Debug("document store ready")
	return &documentStore{pool: pool, logger: cfg.logger}, nil
}

// UpsertDocument writes the document row and replaces its chunk set in a
// single transaction, so a re-ingested document never accumulates stale
// or duplicate chunks.
func (s *documentStore) UpsertDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", storage.ErrInvalidQuery)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("%w: document metadata: %v", storage.ErrSerializationFailed, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, upsertDocumentSQL,
		idToDB(doc.Id), doc.Title, doc.Content, doc.Source, doc.Project,
		string(doc.DocType), doc.Tags, metaJSON, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert document %d: %w", doc.Id, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, idToDB(doc.Id)); err != nil {
		return fmt.Errorf("clear chunks for document %d: %w", doc.Id, err)
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(insertChunkSQL,
			idToDB(chunk.Id), idToDB(doc.Id), chunk.Index,
			chunk.StartOffset, chunk.EndOffset, chunk.TimeOffsets,
			chunk.Content, chunk.TokenCount, chunk.Language)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert chunks for document %d: %w", doc.Id, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *documentStore) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var (
		dbID     int64
		docType  string
		metaJSON []byte
		doc      core.Document
	)
	err := s.pool.QueryRow(ctx, getDocumentSQL, idToDB(id)).Scan(
		&dbID, &doc.Title, &doc.Content, &doc.Source, &doc.Project,
		&docType, &doc.Tags, &metaJSON, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}

	doc.Id = idFromDB(dbID)
	doc.DocType = core.Format(docType)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("%w: document metadata: %v", storage.ErrSerializationFailed, err)
		}
	}
	return &doc, nil
}

func (s *documentStore) GetChunks(ctx context.Context, documentID core.ID) ([]*core.Chunk, error) {
	rows, err := s.pool.Query(ctx, getChunksSQL, idToDB(documentID))
	if err != nil {
		return nil, fmt.Errorf("get chunks for document %d: %w", documentID, err)
	}
	return scanChunks(rows)
}

func (s *documentStore) GetChunksByID(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	dbIDs := make([]int64, len(ids))
	for i, id := range ids {
		dbIDs[i] = idToDB(id)
	}
	rows, err := s.pool.Query(ctx, getChunksByIDSQL, dbIDs)
	if err != nil {
		return nil, fmt.Errorf("get chunks by id: %w", err)
	}
	return scanChunks(rows)
}

func (s *documentStore) Close() error {
	s.pool.Close()
	return nil
}

func scanChunks(rows pgx.Rows) ([]*core.Chunk, error) {
	defer rows.Close()

	var chunks []*core.Chunk
	for rows.Next() {
		var (
			id, docID int64
			chunk     core.Chunk
		)
		err := rows.Scan(&id, &docID, &chunk.Index,
			&chunk.StartOffset, &chunk.EndOffset, &chunk.TimeOffsets,
			&chunk.Content, &chunk.TokenCount, &chunk.Language)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Id = idFromDB(id)
		chunk.DocumentId = idFromDB(docID)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}
