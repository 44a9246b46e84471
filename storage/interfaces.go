package storage

import (
	"context"
	"time"

	"github.com/poiesic/weavit/core"
)

// Store names as they appear in job records, progress details, and logs
// when a write fails.
const (
	StoreRelational = "relational"
	StoreVector     = "vector"
	StoreGraph      = "graph"
)

// DocumentStore is the relational home of documents and their chunks.
// It is the source of truth: a document exists once its relational write
// commits, regardless of what the enrichment stores hold.
// Implementations must be thread-safe and support concurrent access.
type DocumentStore interface {
	// UpsertDocument writes a document and its chunks in a single
	// transaction. Re-ingesting a document replaces its chunk set rather
	// than appending to it, so repeated runs leave no duplicate rows.
	UpsertDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error

	// GetDocument retrieves a document by ID, without its chunks.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetChunks retrieves all chunks of a document, ordered by index.
	GetChunks(ctx context.Context, documentID core.ID) ([]*core.Chunk, error)

	// GetChunksByID retrieves chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunksByID(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// Close releases the store's connection pool.
	Close() error
}

// VectorStore holds chunk embeddings for similarity search. It is an
// enrichment store: its content may lag the relational store after a
// partial ingestion and is healed by the reconciliation sweep.
type VectorStore interface {
	// UpsertEmbeddings writes the embeddings of the given chunks.
	// Chunks with a nil embedding are skipped, not errors.
	UpsertEmbeddings(ctx context.Context, chunks []*core.Chunk) error

	// Search returns the chunks nearest to the query vector, best first.
	Search(ctx context.Context, vector []float32, limit int) ([]*SearchHit, error)

	// Close releases the store's connection pool.
	Close() error
}

// GraphStore holds the entity graph extracted from documents. Like the
// vector store it is enrichment only, and healed by the sweep.
type GraphStore interface {
	// MergeDocumentGraph merges a document node, its entities, and their
	// relationships into the graph. Entities are keyed by lowercased
	// name; a repeated relationship increments a count on the existing
	// edge instead of duplicating it.
	MergeDocumentGraph(ctx context.Context, doc *core.Document, entities []*core.Entity, relationships []*core.Relationship) error

	// Close shuts down the underlying driver.
	Close() error
}

// SearchHit is one vector search result.
type SearchHit struct {
	ChunkId    core.ID
	DocumentId core.ID
	Content    string
	Score      float64 // cosine similarity, higher is closer
}

// SyncTask records enrichment work that failed during ingestion and must
// be replayed by the reconciliation sweep. Tasks live in the journal
// until the sweep completes or abandons them.
type SyncTask struct {
	Id          string // random UUID assigned at enqueue
	IngestionId string
	DocumentId  core.ID
	// NeedEmbed requests re-embedding of ChunkIds followed by a vector
	// store upsert. NeedGraph requests entity re-extraction from the
	// stored document followed by a graph merge.
	NeedEmbed bool
	NeedGraph bool
	ChunkIds  []core.ID
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobJournal persists ingestion job records and pending sync tasks so
// both survive restarts.
// Implementations must be thread-safe and support concurrent access.
type JobJournal interface {
	// SaveJob writes a job record, overwriting any previous state.
	// Jobs in a terminal status are retained for a configured window
	// and then expire.
	SaveJob(ctx context.Context, job *core.IngestionJob) error

	// GetJob retrieves a job by ingestion ID.
	// Returns ErrNotFound if the job doesn't exist or has expired.
	GetJob(ctx context.Context, ingestionID string) (*core.IngestionJob, error)

	// ListJobs retrieves up to limit job records, most recent first.
	ListJobs(ctx context.Context, limit int) ([]*core.IngestionJob, error)

	// EnqueueSyncTask persists a task for the reconciliation sweep.
	// Assigns Id and CreatedAt if unset.
	EnqueueSyncTask(ctx context.Context, task *SyncTask) error

	// NextSyncTasks retrieves up to limit pending tasks, oldest first.
	NextSyncTasks(ctx context.Context, limit int) ([]*SyncTask, error)

	// UpdateSyncTask overwrites a task, typically after a failed attempt.
	// Returns ErrNotFound if the task doesn't exist.
	UpdateSyncTask(ctx context.Context, task *SyncTask) error

	// DeleteSyncTask removes a completed or abandoned task.
	// Deleting a missing task is not an error.
	DeleteSyncTask(ctx context.Context, id string) error

	// Close closes the journal database.
	Close() error
}
