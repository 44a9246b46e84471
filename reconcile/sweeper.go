// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/weavit/ai"
	"github.com/poiesic/weavit/ai/rulebased"
	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/retry"
	"github.com/poiesic/weavit/storage"
)

const (
	// DefaultInterval is how often the sweep runs.
	DefaultInterval = 5 * time.Minute
	// DefaultBatchSize bounds how many sync tasks one sweep processes.
	DefaultBatchSize = 50
	// DefaultMaxAttempts is how often a task is retried before it is
	// abandoned.
	DefaultMaxAttempts = 5
)

// Sweeper is the reconciliation sweep: an explicitly constructed,
// independently startable service that replays failed enrichment work
// from the journal until the stores converge.
type Sweeper struct {
	journal   storage.JobJournal
	documents storage.DocumentStore
	vectors   storage.VectorStore
	graph     storage.GraphStore
	embedder  ai.Embedder
	extractor ai.EntityExtractor

	interval    time.Duration
	batchSize   int
	maxAttempts int
	policy      retry.Policy
	taskTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithInterval sets the sweep period.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBatchSize bounds the tasks processed per sweep.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMaxAttempts sets how many failures a task survives before being
// abandoned.
func WithMaxAttempts(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryPolicy overrides the retry policy for repair writes.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Sweeper) { s.policy = p }
}

// WithTaskTimeout bounds the work on one sync task. Default 2 minutes.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.taskTimeout = d
		}
	}
}

// WithLogger sets the sweeper's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSweeper creates a sweeper over the journal, the stores, and the AI
// provider used to recompute embeddings and entities.
func NewSweeper(
	journal storage.JobJournal,
	documents storage.DocumentStore,
	vectors storage.VectorStore,
	graph storage.GraphStore,
	provider ai.AIProvider,
	opts ...Option,
) (*Sweeper, error) {
	if journal == nil {
		return nil, ErrJournalRequired
	}
	if documents == nil {
		return nil, ErrDocumentStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if graph == nil {
		return nil, ErrGraphStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Sweeper{
		journal:     journal,
		documents:   documents,
		vectors:     vectors,
		graph:       graph,
		embedder:    provider.Embedder(),
		interval:    DefaultInterval,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		policy:      retry.DefaultPolicy(),
		taskTimeout: 2 * time.Minute,
		logger:      slog.Default().With("component", "reconcile"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.extractor = ai.NewFallbackExtractor(provider.EntityExtractor(), rulebased.NewExtractor(), s.logger)

	return s, nil
}

// Start launches the periodic sweep. Returns ErrSweeperRunning when the
// sweeper is already started.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSweeperRunning
	}
	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stop)

	s.logger.Info("reconciliation sweep started", "interval", s.interval)
	return nil
}

// Stop halts the sweep and waits for an in-flight pass to finish.
// Stopping a stopped sweeper is a no-op; the sweeper can be started
// again afterwards.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("reconciliation sweep stopped")
}

func (s *Sweeper) loop(stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			completed, err := s.RunOnce(ctx)
			cancel()
			if err != nil {
				s.logger.Error("sweep pass failed", "err", err)
				continue
			}
			if completed > 0 {
				s.logger.Info("sweep pass completed", "repaired", completed)
			}
		}
	}
}

// RunOnce processes one bounded batch of sync tasks and returns how
// many were completed. Failed tasks have their attempt count bumped;
// tasks over the attempt limit are abandoned.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	tasks, err := s.journal.NextSyncTasks(ctx, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load sync tasks: %w", err)
	}

	completed := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}

		taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
		err := s.process(taskCtx, task)
		cancel()

		if err != nil {
			task.Attempts++
			task.LastError = err.Error()
			if task.Attempts >= s.maxAttempts {
				s.logger.Warn("abandoning sync task",
					"task", task.Id, "document", task.DocumentId,
					"attempts", task.Attempts, "err", err)
				if delErr := s.journal.DeleteSyncTask(ctx, task.Id); delErr != nil {
					s.logger.Error("failed to delete abandoned task", "task", task.Id, "err", delErr)
				}
				continue
			}
			s.logger.Debug("sync task failed, will retry",
				"task", task.Id, "attempts", task.Attempts, "err", err)
			if updErr := s.journal.UpdateSyncTask(ctx, task); updErr != nil {
				s.logger.Error("failed to update sync task", "task", task.Id, "err", updErr)
			}
			continue
		}

		if err := s.journal.DeleteSyncTask(ctx, task.Id); err != nil {
			s.logger.Error("failed to delete completed task", "task", task.Id, "err", err)
			continue
		}
		completed++
	}

	return completed, nil
}

// process repairs one task. Flags are cleared as their repair lands, so
// a task that fails halfway only retries the remaining work.
func (s *Sweeper) process(ctx context.Context, task *storage.SyncTask) error {
	if task.NeedEmbed {
		if err := s.repairEmbeddings(ctx, task); err != nil {
			return fmt.Errorf("embedding repair for document %d: %w", task.DocumentId, err)
		}
		task.NeedEmbed = false
	}
	if task.NeedGraph {
		if err := s.repairGraph(ctx, task); err != nil {
			return fmt.Errorf("graph repair for document %d: %w", task.DocumentId, err)
		}
		task.NeedGraph = false
	}
	return nil
}

// repairEmbeddings re-embeds the task's chunks from their stored
// content and upserts the vectors.
func (s *Sweeper) repairEmbeddings(ctx context.Context, task *storage.SyncTask) error {
	var chunks []*core.Chunk
	var err error
	if len(task.ChunkIds) > 0 {
		chunks, err = s.documents.GetChunksByID(ctx, task.ChunkIds...)
	} else {
		chunks, err = s.documents.GetChunks(ctx, task.DocumentId)
	}
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		// The document may have been re-ingested or deleted since the
		// task was journaled; nothing left to repair.
		s.logger.Debug("no chunks to re-embed", "document", task.DocumentId)
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	var embeddings [][]float32
	err = retry.Do(ctx, s.policy, func() error {
		var embedErr error
		embeddings, embedErr = s.embedder.EmbedTexts(ctx, texts)
		return embedErr
	})
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
	}

	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := retry.Do(ctx, s.policy, func() error {
		return s.vectors.UpsertEmbeddings(ctx, chunks)
	}); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

// repairGraph re-extracts entities from the stored document text and
// merges the graph.
func (s *Sweeper) repairGraph(ctx context.Context, task *storage.SyncTask) error {
	doc, err := s.documents.GetDocument(ctx, task.DocumentId)
	if errors.Is(err, storage.ErrNotFound) {
		// The document was deleted since the task was journaled;
		// nothing left to repair.
		s.logger.Debug("document gone, nothing to merge", "document", task.DocumentId)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	raw, _ := s.extractor.ExtractEntities(ctx, doc.Content)
	normalized := ai.NormalizeResult(raw)
	entities, relationships := ai.Materialize(normalized, doc.Id, time.Now().UTC())

	if err := retry.Do(ctx, s.policy, func() error {
		return s.graph.MergeDocumentGraph(ctx, doc, entities, relationships)
	}); err != nil {
		return fmt.Errorf("merge graph: %w", err)
	}
	return nil
}
