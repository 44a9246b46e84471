package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/weavit/ai"
	"github.com/poiesic/weavit/ai/mock"
	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/extract"
	"github.com/poiesic/weavit/progress"
	"github.com/poiesic/weavit/retry"
	"github.com/poiesic/weavit/storage"
	"github.com/poiesic/weavit/storage/journal"
)

// fakeDocumentStore implements storage.DocumentStore for testing.
type fakeDocumentStore struct {
	mu     sync.Mutex
	fail   bool
	docs   map[core.ID]*core.Document
	chunks map[core.ID][]*core.Chunk
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		docs:   make(map[core.ID]*core.Document),
		chunks: make(map[core.ID][]*core.Chunk),
	}
}

func (f *fakeDocumentStore) UpsertDocument(_ context.Context, doc *core.Document, chunks []*core.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("relational store offline")
	}
	f.docs[doc.Id] = doc
	f.chunks[doc.Id] = chunks
	return nil
}

func (f *fakeDocumentStore) GetDocument(_ context.Context, id core.ID) (*core.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocumentStore) GetChunks(_ context.Context, documentID core.ID) ([]*core.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks[documentID], nil
}

func (f *fakeDocumentStore) GetChunksByID(_ context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*core.Chunk
	for _, chunks := range f.chunks {
		for _, c := range chunks {
			for _, id := range ids {
				if c.Id == id {
					out = append(out, c)
				}
			}
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) Close() error { return nil }

type fakeVectorStore struct {
	mu      sync.Mutex
	fail    bool
	upserts int
	chunks  []*core.Chunk
}

func (f *fakeVectorStore) UpsertEmbeddings(_ context.Context, chunks []*core.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("vector index offline")
	}
	f.upserts++
	f.chunks = chunks
	return nil
}

func (f *fakeVectorStore) Search(context.Context, []float32, int) ([]*storage.SearchHit, error) {
	return nil, nil
}

func (f *fakeVectorStore) Close() error { return nil }

type fakeGraphStore struct {
	mu       sync.Mutex
	fail     bool
	merges   int
	entities []*core.Entity
}

func (f *fakeGraphStore) MergeDocumentGraph(_ context.Context, _ *core.Document, entities []*core.Entity, _ []*core.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("graph store offline")
	}
	f.merges++
	f.entities = entities
	return nil
}

func (f *fakeGraphStore) Close() error { return nil }

type testEnv struct {
	pipeline *Pipeline
	tracker  *progress.Tracker
	journal  storage.JobJournal
	docs     *fakeDocumentStore
	vectors  *fakeVectorStore
	graph    *fakeGraphStore
}

func newTestEnv(t *testing.T, provider ai.AIProvider, opts ...Option) *testEnv {
	t.Helper()

	jrnl, err := journal.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { jrnl.Close() })

	env := &testEnv{
		tracker: progress.NewTracker(),
		journal: jrnl,
		docs:    newFakeDocumentStore(),
		vectors: &fakeVectorStore{},
		graph:   &fakeGraphStore{},
	}

	coordinator := storage.NewCoordinator(env.docs, env.vectors, env.graph, jrnl,
		storage.WithRetryPolicy(retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}),
		storage.WithWriteTimeout(5*time.Second))

	if provider == nil {
		provider = mock.NewMockProvider()
	}

	env.pipeline, err = NewPipeline(provider, coordinator, jrnl, env.tracker, opts...)
	require.NoError(t, err)
	t.Cleanup(env.pipeline.Release)

	return env
}

func (env *testEnv) waitTerminal(t *testing.T, ingestionID string) *core.ProcessingProgress {
	t.Helper()
	require.Eventually(t, func() bool {
		snapshot, ok := env.tracker.Get(ingestionID)
		return ok && snapshot.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached a terminal status", ingestionID)

	snapshot, _ := env.tracker.Get(ingestionID)
	return snapshot
}

func TestPipelineIngestsTextFile(t *testing.T) {
	env := newTestEnv(t, nil)

	id, err := env.pipeline.SubmitFile(context.Background(), SubmitRequest{
		Filename: "notes.txt",
		Content:  []byte("Weavit synchronizes documents into three stores."),
		Project:  "docs",
		Tags:     []string{"notes"},
		Metadata: map[string]string{"origin": "test"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snapshot := env.waitTerminal(t, id)
	assert.Equal(t, core.StatusCompleted, snapshot.Status)
	assert.Equal(t, 100, snapshot.Percent)

	env.docs.mu.Lock()
	require.Len(t, env.docs.docs, 1)
	var doc *core.Document
	for _, d := range env.docs.docs {
		doc = d
	}
	env.docs.mu.Unlock()

	assert.Equal(t, "docs", doc.Project)
	assert.Equal(t, core.FormatText, doc.DocType)
	assert.Equal(t, []string{"notes"}, doc.Tags)
	assert.Equal(t, "test", doc.Metadata["origin"])

	env.vectors.mu.Lock()
	assert.Equal(t, 1, env.vectors.upserts)
	for _, c := range env.vectors.chunks {
		assert.NotNil(t, c.Embedding)
	}
	env.vectors.mu.Unlock()

	env.graph.mu.Lock()
	assert.Equal(t, 1, env.graph.merges)
	env.graph.mu.Unlock()

	job, err := env.journal.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, job.Status)
	assert.Equal(t, doc.Id, job.DocumentId)
	assert.NotZero(t, job.ChunkCount)
	assert.False(t, job.CompletedAt.IsZero())
}

func TestPipelineChunkWindows(t *testing.T) {
	env := newTestEnv(t, nil)

	content := strings.Repeat("a", 2500)
	id, err := env.pipeline.SubmitFile(context.Background(), SubmitRequest{
		Filename: "big.txt",
		Content:  []byte(content),
		Project:  "docs",
	})
	require.NoError(t, err)

	snapshot := env.waitTerminal(t, id)
	require.Equal(t, core.StatusCompleted, snapshot.Status)

	env.docs.mu.Lock()
	defer env.docs.mu.Unlock()
	require.Len(t, env.docs.chunks, 1)
	for _, chunks := range env.docs.chunks {
		require.Len(t, chunks, 4)
		wantStarts := []int64{0, 800, 1600, 2400}
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			assert.Equal(t, wantStarts[i], c.StartOffset)
		}
		assert.Equal(t, int64(2500), chunks[3].EndOffset)
	}
}

func TestPipelineExtractionFailureFailsJobOnly(t *testing.T) {
	registry := extract.NewRegistry()
	registry.Register(core.MethodText, failingProcessor{})
	env := newTestEnv(t, nil, WithRegistry(registry))

	id, err := env.pipeline.SubmitFile(context.Background(), SubmitRequest{
		Filename: "broken.txt",
		Content:  []byte("will not extract"),
	})
	require.NoError(t, err)

	snapshot := env.waitTerminal(t, id)
	assert.Equal(t, core.StatusFailed, snapshot.Status)

	job, err := env.journal.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.ErrorKindProcessing, job.ErrorKind)
	assert.Contains(t, job.Error, "parser crashed")

	// The relational store was never reached.
	env.docs.mu.Lock()
	assert.Empty(t, env.docs.docs)
	env.docs.mu.Unlock()
}

type failingProcessor struct{}

func (failingProcessor) Process(context.Context, extract.Input) (*extract.Result, error) {
	return nil, errors.New("parser crashed")
}

func TestPipelineEmbeddingFailureNeverFailsJob(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockExtractor(), mock.NewMockTranscriber())

	env := newTestEnv(t, provider)

	id, err := env.pipeline.SubmitFile(context.Background(), SubmitRequest{
		Filename: "notes.txt",
		Content:  []byte("embedding backend is down but ingestion proceeds"),
	})
	require.NoError(t, err)

	snapshot := env.waitTerminal(t, id)
	require.Equal(t, core.StatusPartial, snapshot.Status)
	assert.Contains(t, snapshot.Message, "awaiting embeddings")

	// Chunks persisted without vectors.
	env.docs.mu.Lock()
	for _, chunks := range env.docs.chunks {
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.Nil(t, c.Embedding)
		}
	}
	env.docs.mu.Unlock()

	// A re-embedding task waits for the sweep.
	tasks, err := env.journal.NextSyncTasks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].NeedEmbed)
	assert.False(t, tasks[0].NeedGraph)
	assert.NotEmpty(t, tasks[0].ChunkIds)
}

func TestPipelineVectorStoreFailureIsPartial(t *testing.T) {
	env := newTestEnv(t, nil)
	env.vectors.fail = true

	id, err := env.pipeline.SubmitFile(context.Background(), SubmitRequest{
		Filename: "notes.txt",
		Content:  []byte("vector store will reject this document's embeddings"),
	})
	require.NoError(t, err)

	snapshot := env.waitTerminal(t, id)
	assert.Equal(t, core.StatusPartial, snapshot.Status)

	job, err := env.journal.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{storage.StoreVector}, job.FailedStores)
	assert.Equal(t, core.ErrorKindStoreWrite, job.ErrorKind)

	// The system of record and the graph still landed.
	env.docs.mu.Lock()
	assert.Len(t, env.docs.docs, 1)
	env.docs.mu.Unlock()
	env.graph.mu.Lock()
	assert.Equal(t, 1, env.graph.merges)
	env.graph.mu.Unlock()
}

func TestPipelineRelationalFailureFailsJob(t *testing.T) {
	env := newTestEnv(t, nil)
	env.docs.fail = true

	id, err := env.pipeline.SubmitFile(context.Background(), SubmitRequest{
		Filename: "notes.txt",
		Content:  []byte("nothing can be stored"),
	})
	require.NoError(t, err)

	snapshot := env.waitTerminal(t, id)
	assert.Equal(t, core.StatusFailed, snapshot.Status)

	job, err := env.journal.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.ErrorKindStoreWrite, job.ErrorKind)
}

func TestPipelineConcurrentJobsStayIsolated(t *testing.T) {
	env := newTestEnv(t, nil)

	const jobs = 8
	ids := make([]string, jobs)
	for i := range ids {
		id, err := env.pipeline.SubmitFile(context.Background(), SubmitRequest{
			Filename: "doc-" + strings.Repeat("x", i+1) + ".txt",
			Content:  []byte(strings.Repeat("distinct content ", i+1)),
			Project:  "concurrent",
		})
		require.NoError(t, err)
		ids[i] = id
	}

	seen := make(map[string]bool)
	for _, id := range ids {
		require.False(t, seen[id], "ingestion IDs must be unique")
		seen[id] = true
		snapshot := env.waitTerminal(t, id)
		assert.Equal(t, core.StatusCompleted, snapshot.Status)
		assert.Equal(t, id, snapshot.IngestionId)
	}
}

func TestPipelineIdempotentReingestion(t *testing.T) {
	env := newTestEnv(t, nil)

	submit := func() string {
		id, err := env.pipeline.SubmitFile(context.Background(), SubmitRequest{
			Filename: "stable.txt",
			Content:  []byte("identical content produces identical document identity"),
			Project:  "docs",
		})
		require.NoError(t, err)
		return id
	}

	first := submit()
	env.waitTerminal(t, first)
	second := submit()
	env.waitTerminal(t, second)

	assert.NotEqual(t, first, second, "jobs are distinct")

	env.docs.mu.Lock()
	defer env.docs.mu.Unlock()
	assert.Len(t, env.docs.docs, 1, "re-ingestion upserts the same document row")
}

func TestPipelineCancel(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, _ string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockExtractor(), mock.NewMockTranscriber())
	env := newTestEnv(t, provider)

	id, err := env.pipeline.SubmitFile(context.Background(), SubmitRequest{
		Filename: "slow.txt",
		Content:  []byte("this job will be canceled mid-embedding"),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snapshot, ok := env.tracker.Get(id)
		return ok && snapshot.Status == core.StatusEmbedding
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, env.pipeline.Cancel(id))

	snapshot := env.waitTerminal(t, id)
	assert.Equal(t, core.StatusFailed, snapshot.Status)
	assert.Equal(t, "ingestion canceled", snapshot.Message)

	// Nothing was written after the halt.
	env.docs.mu.Lock()
	assert.Empty(t, env.docs.docs)
	env.docs.mu.Unlock()
}

func TestPipelineCancelUnknownJob(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.pipeline.Cancel("no-such-job")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestPipelineStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("unknown id", func(t *testing.T) {
		_, err := env.pipeline.Status(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("journal fallback", func(t *testing.T) {
		job := newJob("archived.txt", "docs")
		job.Status = core.StatusCompleted
		job.Progress = 100
		job.DocumentId = 99
		require.NoError(t, env.journal.SaveJob(context.Background(), job))

		snapshot, err := env.pipeline.Status(context.Background(), job.IngestionId)
		require.NoError(t, err)
		assert.Equal(t, core.StatusCompleted, snapshot.Status)
		assert.Equal(t, "99", snapshot.Details["document_id"])
	})
}

func TestPipelineSubmitValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.pipeline.SubmitFile(context.Background(), SubmitRequest{Filename: "x.txt"})
	assert.Error(t, err, "empty content is rejected")

	_, err = env.pipeline.SubmitFile(context.Background(), SubmitRequest{Content: []byte("x")})
	assert.Error(t, err, "missing filename is rejected")
}

func TestNewPipelineRequiresDependencies(t *testing.T) {
	jrnl, err := journal.OpenMemory()
	require.NoError(t, err)
	defer jrnl.Close()

	coordinator := storage.NewCoordinator(newFakeDocumentStore(), &fakeVectorStore{}, &fakeGraphStore{}, jrnl)
	tracker := progress.NewTracker()

	_, err = NewPipeline(nil, coordinator, jrnl, tracker)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = NewPipeline(mock.NewMockProvider(), nil, jrnl, tracker)
	assert.ErrorIs(t, err, ErrCoordinatorRequired)

	_, err = NewPipeline(mock.NewMockProvider(), coordinator, nil, tracker)
	assert.ErrorIs(t, err, ErrJournalRequired)

	_, err = NewPipeline(mock.NewMockProvider(), coordinator, jrnl, nil)
	assert.ErrorIs(t, err, ErrTrackerRequired)
}
