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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/poiesic/weavit/ai"
	"github.com/poiesic/weavit/ai/rulebased"
	"github.com/poiesic/weavit/chunk"
	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/detect"
	"github.com/poiesic/weavit/extract"
	"github.com/poiesic/weavit/progress"
	"github.com/poiesic/weavit/storage"
)

const (
	// DefaultDocumentWorkers bounds how many documents process concurrently.
	DefaultDocumentWorkers = 5
	// DefaultEmbeddingWorkers bounds in-flight embedding requests,
	// independent of document-level concurrency.
	DefaultEmbeddingWorkers = 8
	// DefaultEmbeddingCacheSize is the capacity of the content-keyed
	// embedding cache.
	DefaultEmbeddingCacheSize = 4096
)

var validate = validator.New()

// Pipeline drives submitted documents through detection, extraction,
// chunking, embedding, entity extraction, and storage.
type Pipeline struct {
	detector    *detect.Detector
	registry    *extract.Registry
	chunker     *chunk.Chunker
	provider    ai.AIProvider
	extractor   ai.EntityExtractor
	coordinator *storage.Coordinator
	journal     storage.JobJournal
	tracker     *progress.Tracker

	docPool   *ants.Pool
	embedPool *ants.Pool
	limiter   *rate.Limiter
	cache     *lru.Cache[core.ID, []float32]

	embedTimeout   time.Duration
	extractTimeout time.Duration
	fetchTimeout   time.Duration
	maxFetchBytes  int64

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithDocumentWorkers sets the document-level worker pool size.
// Default is DefaultDocumentWorkers, with a minimum of 1.
func WithDocumentWorkers(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.docPool != nil {
			p.docPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.docPool = pool
		return nil
	}
}

// WithEmbeddingWorkers sets the embedding fan-out pool size.
// Default is DefaultEmbeddingWorkers, with a minimum of 1.
func WithEmbeddingWorkers(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.embedPool != nil {
			p.embedPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embedPool = pool
		return nil
	}
}

// WithEmbeddingRate limits embedding requests per second across all
// jobs. Default is unlimited.
func WithEmbeddingRate(perSecond float64, burst int) Option {
	return func(p *Pipeline) error {
		if perSecond <= 0 {
			return fmt.Errorf("embedding rate must be positive, got %v", perSecond)
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithEmbeddingTimeout bounds each embedding request. Default 30s.
func WithEmbeddingTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d > 0 {
			p.embedTimeout = d
		}
		return nil
	}
}

// WithExtractionTimeout bounds the LLM entity extraction request.
// Default 60s.
func WithExtractionTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d > 0 {
			p.extractTimeout = d
		}
		return nil
	}
}

// WithFetchTimeout bounds URL downloads. Default 60s.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d > 0 {
			p.fetchTimeout = d
		}
		return nil
	}
}

// WithMaxFetchBytes caps URL download size. Default 32 MiB.
func WithMaxFetchBytes(n int64) Option {
	return func(p *Pipeline) error {
		if n > 0 {
			p.maxFetchBytes = n
		}
		return nil
	}
}

// WithEmbeddingCacheSize sets the embedding cache capacity.
func WithEmbeddingCacheSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		cache, err := lru.New[core.ID, []float32](size)
		if err != nil {
			return err
		}
		p.cache = cache
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(chunker *chunk.Chunker) Option {
	return func(p *Pipeline) error {
		if chunker != nil {
			p.chunker = chunker
		}
		return nil
	}
}

// WithRegistry replaces the default processor registry. The caller is
// responsible for wiring a transcriber into it if transcription is needed.
func WithRegistry(registry *extract.Registry) Option {
	return func(p *Pipeline) error {
		if registry != nil {
			p.registry = registry
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline over the given AI provider,
// storage coordinator, job journal, and progress tracker.
func NewPipeline(
	provider ai.AIProvider,
	coordinator *storage.Coordinator,
	journal storage.JobJournal,
	tracker *progress.Tracker,
	opts ...Option,
) (*Pipeline, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if coordinator == nil {
		return nil, ErrCoordinatorRequired
	}
	if journal == nil {
		return nil, ErrJournalRequired
	}
	if tracker == nil {
		return nil, ErrTrackerRequired
	}

	docPool, err := ants.NewPool(DefaultDocumentWorkers)
	if err != nil {
		return nil, err
	}
	embedPool, err := ants.NewPool(DefaultEmbeddingWorkers)
	if err != nil {
		docPool.Release()
		return nil, err
	}
	cache, err := lru.New[core.ID, []float32](DefaultEmbeddingCacheSize)
	if err != nil {
		docPool.Release()
		embedPool.Release()
		return nil, err
	}

	chunker, err := chunk.NewChunker()
	if err != nil {
		docPool.Release()
		embedPool.Release()
		return nil, err
	}

	p := &Pipeline{
		detector:       detect.NewDetector(),
		chunker:        chunker,
		provider:       provider,
		coordinator:    coordinator,
		journal:        journal,
		tracker:        tracker,
		docPool:        docPool,
		embedPool:      embedPool,
		limiter:        rate.NewLimiter(rate.Inf, 0),
		cache:          cache,
		embedTimeout:   30 * time.Second,
		extractTimeout: 60 * time.Second,
		fetchTimeout:   60 * time.Second,
		maxFetchBytes:  32 << 20,
		cancels:        make(map[string]context.CancelFunc),
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	if p.registry == nil {
		p.registry = extract.NewRegistry(extract.WithTranscriber(provider.Transcriber()))
	}
	p.extractor = ai.NewFallbackExtractor(provider.EntityExtractor(), rulebased.NewExtractor(), p.logger)

	return p, nil
}

// SubmitRequest describes one file submission.
type SubmitRequest struct {
	Filename string `validate:"required"`
	Content  []byte `validate:"required"`
	Project  string
	Tags     []string
	Metadata map[string]string
}

// SubmitFile accepts a file for ingestion and returns its ingestion ID
// immediately; processing happens asynchronously. The only errors are
// request validation and a journal that cannot record the job.
func (p *Pipeline) SubmitFile(ctx context.Context, req SubmitRequest) (string, error) {
	if err := validate.Struct(req); err != nil {
		return "", err
	}

	job := newJob(req.Filename, req.Project)
	if err := p.journal.SaveJob(ctx, job); err != nil {
		return "", fmt.Errorf("journal job record: %w", err)
	}
	p.tracker.Update(job.IngestionId, core.StatusQueued, 0, "queued", nil)

	// The job context is detached from the submission context: the
	// caller returning must not cancel async processing. Cancellation
	// goes through Cancel.
	jobCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancels[job.IngestionId] = cancel
	p.mu.Unlock()

	err := p.docPool.Submit(func() {
		defer p.clearCancel(job.IngestionId)
		p.runJob(jobCtx, job, req)
	})
	if err != nil {
		p.clearCancel(job.IngestionId)
		p.fail(job, core.ErrorKindFatal, fmt.Errorf("submit to worker pool: %w", err))
		return "", err
	}

	return job.IngestionId, nil
}

// Status returns the current progress snapshot for a job. Jobs no longer
// tracked in memory are served from the journal. Returns ErrJobNotFound
// for unknown IDs.
func (p *Pipeline) Status(ctx context.Context, ingestionID string) (*core.ProcessingProgress, error) {
	if snapshot, ok := p.tracker.Get(ingestionID); ok {
		return snapshot, nil
	}

	job, err := p.journal.GetJob(ctx, ingestionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, ingestionID)
		}
		return nil, err
	}
	return snapshotFromJob(job), nil
}

// Cancel halts further stage execution for a job. Store writes already
// committed stay committed. Returns ErrJobNotFound if the job is not
// currently running.
func (p *Pipeline) Cancel(ingestionID string) error {
	p.mu.Lock()
	cancel, ok := p.cancels[ingestionID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, ingestionID)
	}
	cancel()
	return nil
}

// Release releases the worker pools. The pipeline should not be used
// after calling Release; jobs still queued are abandoned.
func (p *Pipeline) Release() {
	if p.docPool != nil {
		p.docPool.Release()
	}
	if p.embedPool != nil {
		p.embedPool.Release()
	}
}

func (p *Pipeline) clearCancel(ingestionID string) {
	p.mu.Lock()
	delete(p.cancels, ingestionID)
	p.mu.Unlock()
}

// snapshotFromJob rebuilds a progress snapshot from a journaled record.
func snapshotFromJob(job *core.IngestionJob) *core.ProcessingProgress {
	message := "ingestion " + string(job.Status)
	if job.Error != "" {
		message = job.Error
	}
	details := map[string]string{}
	if job.DocumentId != 0 {
		details["document_id"] = fmt.Sprintf("%d", job.DocumentId)
	}
	if len(job.FailedStores) > 0 {
		details["failed_stores"] = fmt.Sprintf("%v", job.FailedStores)
	}
	return &core.ProcessingProgress{
		IngestionId: job.IngestionId,
		Status:      job.Status,
		Percent:     job.Progress,
		Message:     message,
		Details:     details,
		UpdatedAt:   job.CompletedAt,
	}
}
