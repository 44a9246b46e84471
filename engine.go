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


// Package weavit ingests documents of any format into a relational
// store, a vector store, and an entity graph, and keeps the three in
// sync. The Engine wires the stores, the AI provider, the ingestion
// pipeline, and the reconciliation sweep from one configuration.
package weavit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/weavit/ai"
	"github.com/poiesic/weavit/ai/gemini"
	"github.com/poiesic/weavit/ai/openai"
	"github.com/poiesic/weavit/chunk"
	"github.com/poiesic/weavit/config"
	"github.com/poiesic/weavit/ingestion"
	"github.com/poiesic/weavit/progress"
	"github.com/poiesic/weavit/reconcile"
	"github.com/poiesic/weavit/search"
	"github.com/poiesic/weavit/storage"
	"github.com/poiesic/weavit/storage/journal"
	"github.com/poiesic/weavit/storage/neo4j"
	"github.com/poiesic/weavit/storage/postgres"
)

// Engine owns the full ingestion stack: the three stores, the job
// journal, the AI provider, the pipeline, and the sweeper.
type Engine struct {
	cfg *config.Config

	journal   storage.JobJournal
	documents storage.DocumentStore
	vectors   storage.VectorStore
	graph     storage.GraphStore
	provider  ai.AIProvider

	tracker     *progress.Tracker
	coordinator *storage.Coordinator
	pipeline    *ingestion.Pipeline
	sweeper     *reconcile.Sweeper

	logger *slog.Logger
}

// EngineOption configures engine construction.
type EngineOption func(*engineOptions)

type engineOptions struct {
	documents storage.DocumentStore
	vectors   storage.VectorStore
	graph     storage.GraphStore
	journal   storage.JobJournal
	provider  ai.AIProvider
	logger    *slog.Logger
}

// WithDocumentStore injects a document store instead of connecting to
// PostgreSQL. Intended for tests and embedders with their own stores.
func WithDocumentStore(s storage.DocumentStore) EngineOption {
	return func(o *engineOptions) { o.documents = s }
}

// WithVectorStore injects a vector store.
func WithVectorStore(s storage.VectorStore) EngineOption {
	return func(o *engineOptions) { o.vectors = s }
}

// WithGraphStore injects a graph store.
func WithGraphStore(s storage.GraphStore) EngineOption {
	return func(o *engineOptions) { o.graph = s }
}

// WithJournal injects a job journal.
func WithJournal(j storage.JobJournal) EngineOption {
	return func(o *engineOptions) { o.journal = j }
}

// WithAIProvider injects an AI provider.
func WithAIProvider(p ai.AIProvider) EngineOption {
	return func(o *engineOptions) { o.provider = p }
}

// WithLogger sets the engine's logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewEngine connects every backend named in cfg and assembles the
// pipeline and sweeper on top of them. Components injected via options
// are used as-is; everything else is dialed here. On error, whatever
// was already opened is closed again.
func NewEngine(ctx context.Context, cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	e := &Engine{cfg: cfg, logger: options.logger}

	// Close the pieces opened so far when a later step fails.
	cleanup := func() { e.closeBackends() }

	var err error
	e.journal = options.journal
	if e.journal == nil {
		if cfg.Journal.Dir == "" {
			e.journal, err = journal.OpenMemory(journal.WithRetention(cfg.Journal.Retention.Std()))
		} else {
			e.journal, err = journal.Open(cfg.Journal.Dir, journal.WithRetention(cfg.Journal.Retention.Std()))
		}
		if err != nil {
			return nil, fmt.Errorf("open job journal: %w", err)
		}
	}

	e.documents = options.documents
	if e.documents == nil {
		e.documents, err = postgres.NewDocumentStore(ctx, cfg.Postgres.URL,
			postgres.WithLogger(e.logger))
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("connect document store: %w", err)
		}
	}

	e.vectors = options.vectors
	if e.vectors == nil {
		vectorURL := cfg.Postgres.VectorURL
		if vectorURL == "" {
			vectorURL = cfg.Postgres.URL
		}
		e.vectors, err = postgres.NewVectorStore(ctx, vectorURL,
			postgres.WithLogger(e.logger),
			postgres.WithDimensions(cfg.Postgres.Dimensions),
			postgres.WithIndexLists(cfg.Postgres.IndexLists))
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("connect vector store: %w", err)
		}
	}

	e.graph = options.graph
	if e.graph == nil {
		e.graph, err = neo4j.New(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password,
			neo4j.WithLogger(e.logger))
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("connect graph store: %w", err)
		}
	}

	e.provider = options.provider
	if e.provider == nil {
		e.provider, err = newProvider(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, err
		}
	}

	e.tracker = progress.NewTracker(progress.WithLogger(e.logger))
	e.coordinator = storage.NewCoordinator(e.documents, e.vectors, e.graph, e.journal,
		storage.WithLogger(e.logger))

	chunker, err := chunk.NewChunker(
		chunk.WithSize(cfg.Pipeline.ChunkSize),
		chunk.WithOverlap(cfg.Pipeline.ChunkOverlap))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("build chunker: %w", err)
	}

	e.pipeline, err = ingestion.NewPipeline(e.provider, e.coordinator, e.journal, e.tracker,
		ingestion.WithDocumentWorkers(cfg.Pipeline.DocumentWorkers),
		ingestion.WithEmbeddingWorkers(cfg.Pipeline.EmbeddingWorkers),
		ingestion.WithEmbeddingCacheSize(cfg.Pipeline.EmbedCacheSize),
		ingestion.WithChunker(chunker),
		ingestion.WithLogger(e.logger))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("build ingestion pipeline: %w", err)
	}

	e.sweeper, err = reconcile.NewSweeper(e.journal, e.documents, e.vectors, e.graph, e.provider,
		reconcile.WithInterval(cfg.Sweep.Interval.Std()),
		reconcile.WithBatchSize(cfg.Sweep.BatchSize),
		reconcile.WithMaxAttempts(cfg.Sweep.MaxAttempts),
		reconcile.WithLogger(e.logger))
	if err != nil {
		e.pipeline.Release()
		cleanup()
		return nil, fmt.Errorf("build sweeper: %w", err)
	}

	return e, nil
}

// newProvider builds the configured AI provider.
func newProvider(ctx context.Context, cfg *config.Config) (ai.AIProvider, error) {
	aiCfg := ai.NewConfig(
		ai.WithHost(cfg.AI.Host),
		ai.WithAPIKey(cfg.AI.APIKey),
		ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
		ai.WithExtractorModel(cfg.AI.ExtractorModel),
		ai.WithTranscriptionModel(cfg.AI.TranscriptionModel),
		ai.WithMaxTextLength(cfg.AI.MaxTextLength),
	)
	if cfg.AI.TranscriberHost != "" {
		ai.WithTranscriberHost(cfg.AI.TranscriberHost)(aiCfg)
	}

	switch cfg.AI.Provider {
	case config.ProviderGemini:
		return gemini.NewProvider(ctx, aiCfg)
	case config.ProviderOpenAI:
		return openai.NewProvider(aiCfg)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AI.Provider)
	}
}

// Pipeline returns the ingestion pipeline.
func (e *Engine) Pipeline() *ingestion.Pipeline {
	return e.pipeline
}

// Sweeper returns the reconciliation sweeper. It is not started;
// call Start on it to begin periodic sweeps.
func (e *Engine) Sweeper() *reconcile.Sweeper {
	return e.sweeper
}

// Tracker returns the progress tracker used by the pipeline.
func (e *Engine) Tracker() *progress.Tracker {
	return e.tracker
}

// Journal returns the job journal.
func (e *Engine) Journal() storage.JobJournal {
	return e.journal
}

// NewSearcher builds a searcher over the engine's stores.
func (e *Engine) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(e.documents, e.vectors, e.provider, opts...)
}

// Close stops the sweeper, releases the pipeline's worker pools, and
// closes every backend. The first backend close error is returned.
func (e *Engine) Close() error {
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	if e.pipeline != nil {
		e.pipeline.Release()
	}
	return e.closeBackends()
}

func (e *Engine) closeBackends() error {
	var firstErr error
	record := func(what string, err error) {
		if err == nil {
			return
		}
		e.logger.Error("error closing "+what, "err", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if e.provider != nil {
		record("AI provider", e.provider.Close())
	}
	if e.graph != nil {
		record("graph store", e.graph.Close())
	}
	if e.vectors != nil {
		record("vector store", e.vectors.Close())
	}
	if e.documents != nil {
		record("document store", e.documents.Close())
	}
	if e.journal != nil {
		record("job journal", e.journal.Close())
	}
	return firstErr
}
