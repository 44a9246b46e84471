package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/retry"
)

// Bundle is everything the pipeline produced for one document, handed to
// the coordinator in a single call.
type Bundle struct {
	IngestionId   string
	Document      *core.Document
	Chunks        []*core.Chunk
	Entities      []*core.Entity
	Relationships []*core.Relationship
}

// Coordinator fans one processed document out to the three stores.
//
// The relational write lands first: if it fails after retries there is no
// record to enrich and Persist returns the error. The vector and graph
// writes then run concurrently; a failure there degrades the result
// instead of failing it, and the missed work is journaled for the
// reconciliation sweep. Nothing is ever rolled back.
type Coordinator struct {
	documents DocumentStore
	vectors   VectorStore
	graph     GraphStore
	journal   JobJournal

	policy       retry.Policy
	writeTimeout time.Duration
	logger       *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRetryPolicy overrides the retry policy applied to each store write.
func WithRetryPolicy(p retry.Policy) CoordinatorOption {
	return func(c *Coordinator) { c.policy = p }
}

// WithWriteTimeout overrides the per-attempt timeout for each store write.
func WithWriteTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.writeTimeout = d }
}

// WithLogger sets the coordinator's logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

// NewCoordinator creates a coordinator over the three stores and the
// journal used to queue repair work.
func NewCoordinator(documents DocumentStore, vectors VectorStore, graph GraphStore, journal JobJournal, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		documents:    documents,
		vectors:      vectors,
		graph:        graph,
		journal:      journal,
		policy:       retry.DefaultPolicy(),
		writeTimeout: 30 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Persist writes the bundle to all stores. It returns the names of the
// enrichment stores that failed (empty when everything landed) and an
// error only when the relational write itself failed.
func (c *Coordinator) Persist(ctx context.Context, bundle *Bundle) ([]string, error) {
	if bundle == nil || bundle.Document == nil {
		return nil, fmt.Errorf("%w: bundle has no document", ErrInvalidQuery)
	}

	if err := c.writeStore(ctx, StoreRelational, func(ctx context.Context) error {
		return c.documents.UpsertDocument(ctx, bundle.Document, bundle.Chunks)
	}); err != nil {
		return nil, fmt.Errorf("%s write for document %d: %w", StoreRelational, bundle.Document.Id, err)
	}

	// The enrichment writes are independent of each other: one failing
	// must not cancel the other, so the closures capture their errors
	// and the group only waits.
	var vectorErr, graphErr error
	var group errgroup.Group
	group.Go(func() error {
		vectorErr = c.writeStore(ctx, StoreVector, func(ctx context.Context) error {
			return c.vectors.UpsertEmbeddings(ctx, bundle.Chunks)
		})
		return nil
	})
	group.Go(func() error {
		graphErr = c.writeStore(ctx, StoreGraph, func(ctx context.Context) error {
			return c.graph.MergeDocumentGraph(ctx, bundle.Document, bundle.Entities, bundle.Relationships)
		})
		return nil
	})
	_ = group.Wait()

	var failed []string
	if vectorErr != nil {
		failed = append(failed, StoreVector)
	}
	if graphErr != nil {
		failed = append(failed, StoreGraph)
	}
	if len(failed) == 0 {
		c.logger.Debug("document persisted",
			"document", bundle.Document.Id, "chunks", len(bundle.Chunks),
			"entities", len(bundle.Entities))
		return nil, nil
	}

	c.logger.Warn("enrichment writes failed, queued for reconciliation",
		"document", bundle.Document.Id, "stores", failed)
	c.enqueueRepair(ctx, bundle, vectorErr, graphErr)
	return failed, nil
}

// writeStore runs one store write under the retry policy, giving each
// attempt its own timeout.
func (c *Coordinator) writeStore(ctx context.Context, name string, write func(ctx context.Context) error) error {
	err := retry.Do(ctx, c.policy, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
		return write(attemptCtx)
	})
	if err != nil {
		c.logger.Error("store write failed", "store", name, "error", err)
	}
	return err
}

// enqueueRepair journals a sync task for the failed enrichment writes.
// A journal failure is logged and swallowed: the job record still names
// the failed stores, so the loss is visible even if the sweep never
// picks it up.
func (c *Coordinator) enqueueRepair(ctx context.Context, bundle *Bundle, vectorErr, graphErr error) {
	task := &SyncTask{
		IngestionId: bundle.IngestionId,
		DocumentId:  bundle.Document.Id,
		NeedEmbed:   vectorErr != nil,
		NeedGraph:   graphErr != nil,
	}

	var reasons []string
	if vectorErr != nil {
		// Only the chunks that had vectors: the lost embeddings must be
		// recomputed from stored chunk content. Chunks that never
		// embedded are queued separately by the embedding stage.
		for _, chunk := range bundle.Chunks {
			if chunk.Embedding != nil {
				task.ChunkIds = append(task.ChunkIds, chunk.Id)
			}
		}
		reasons = append(reasons, vectorErr.Error())
	}
	if graphErr != nil {
		reasons = append(reasons, graphErr.Error())
	}
	task.LastError = strings.Join(reasons, "; ")

	if err := c.journal.EnqueueSyncTask(ctx, task); err != nil {
		c.logger.Error("failed to journal sync task",
			"document", bundle.Document.Id, "ingestion", bundle.IngestionId, "error", err)
	}
}
