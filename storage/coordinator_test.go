package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/retry"
)

type fakeDocumentStore struct {
	mu      sync.Mutex
	calls   int
	failFor int // fail the first N calls
	doc     *core.Document
	chunks  []*core.Chunk
}

func (f *fakeDocumentStore) UpsertDocument(_ context.Context, doc *core.Document, chunks []*core.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFor {
		return errors.New("connection refused")
	}
	f.doc = doc
	f.chunks = chunks
	return nil
}

func (f *fakeDocumentStore) GetDocument(context.Context, core.ID) (*core.Document, error) {
	return nil, ErrNotFound
}

func (f *fakeDocumentStore) GetChunks(context.Context, core.ID) ([]*core.Chunk, error) {
	return nil, nil
}

func (f *fakeDocumentStore) GetChunksByID(context.Context, ...core.ID) ([]*core.Chunk, error) {
	return nil, nil
}

func (f *fakeDocumentStore) Close() error { return nil }

type fakeVectorStore struct {
	mu     sync.Mutex
	calls  int
	fail   bool
	chunks []*core.Chunk
}

func (f *fakeVectorStore) UpsertEmbeddings(_ context.Context, chunks []*core.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("vector index offline")
	}
	f.chunks = chunks
	return nil
}

func (f *fakeVectorStore) Search(context.Context, []float32, int) ([]*SearchHit, error) {
	return nil, nil
}

func (f *fakeVectorStore) Close() error { return nil }

type fakeGraphStore struct {
	mu       sync.Mutex
	calls    int
	fail     bool
	doc      *core.Document
	entities []*core.Entity
	rels     []*core.Relationship
}

func (f *fakeGraphStore) MergeDocumentGraph(_ context.Context, doc *core.Document, entities []*core.Entity, rels []*core.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("neo4j unreachable")
	}
	f.doc = doc
	f.entities = entities
	f.rels = rels
	return nil
}

func (f *fakeGraphStore) Close() error { return nil }

type fakeJournal struct {
	mu    sync.Mutex
	fail  bool
	tasks []*SyncTask
	jobs  map[string]*core.IngestionJob
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{jobs: make(map[string]*core.IngestionJob)}
}

func (f *fakeJournal) SaveJob(_ context.Context, job *core.IngestionJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.IngestionId] = job
	return nil
}

func (f *fakeJournal) GetJob(_ context.Context, ingestionID string) (*core.IngestionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[ingestionID]
	if !ok {
		return nil, ErrNotFound
	}
	return job, nil
}

func (f *fakeJournal) ListJobs(context.Context, int) ([]*core.IngestionJob, error) {
	return nil, nil
}

func (f *fakeJournal) EnqueueSyncTask(_ context.Context, task *SyncTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("journal write failed")
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeJournal) NextSyncTasks(context.Context, int) ([]*SyncTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*SyncTask(nil), f.tasks...), nil
}

func (f *fakeJournal) UpdateSyncTask(context.Context, *SyncTask) error { return nil }

func (f *fakeJournal) DeleteSyncTask(context.Context, string) error { return nil }

func (f *fakeJournal) Close() error { return nil }

func newTestCoordinator(docs DocumentStore, vecs VectorStore, graph GraphStore, journal JobJournal) *Coordinator {
	return NewCoordinator(docs, vecs, graph, journal,
		WithRetryPolicy(retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}),
		WithWriteTimeout(time.Second),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func testBundle() *Bundle {
	doc := &core.Document{
		Id:      core.IDFromContent("quarterly report"),
		Title:   "Quarterly Report",
		Content: "Revenue grew in the third quarter.",
		Project: "finance",
		DocType: core.FormatMarkdown,
	}
	chunks := []*core.Chunk{
		{Id: 1, DocumentId: doc.Id, Index: 0, Content: "Revenue grew", Embedding: []float32{0.1, 0.2}},
		{Id: 2, DocumentId: doc.Id, Index: 1, Content: "in the third quarter", Embedding: []float32{0.3, 0.4}},
		{Id: 3, DocumentId: doc.Id, Index: 2, Content: "Outlook pending.", Embedding: nil},
	}
	entities := []*core.Entity{{Name: "Acme", Type: "organization"}}
	rels := []*core.Relationship{{Source: "Acme", Target: "Q3", Type: "REPORTED_IN", DocumentId: doc.Id}}
	return &Bundle{
		IngestionId:   "ing-123",
		Document:      doc,
		Chunks:        chunks,
		Entities:      entities,
		Relationships: rels,
	}
}

func TestCoordinatorPersist(t *testing.T) {
	docs := &fakeDocumentStore{}
	vecs := &fakeVectorStore{}
	graph := &fakeGraphStore{}
	journal := newFakeJournal()
	c := newTestCoordinator(docs, vecs, graph, journal)

	bundle := testBundle()
	failed, err := c.Persist(context.Background(), bundle)
	require.NoError(t, err)
	assert.Empty(t, failed)

	assert.Equal(t, 1, docs.calls)
	assert.Same(t, bundle.Document, docs.doc)
	assert.Len(t, docs.chunks, 3)

	assert.Equal(t, 1, vecs.calls)
	assert.Len(t, vecs.chunks, 3)

	assert.Equal(t, 1, graph.calls)
	assert.Same(t, bundle.Document, graph.doc)
	assert.Len(t, graph.entities, 1)
	assert.Len(t, graph.rels, 1)

	assert.Empty(t, journal.tasks)
}

func TestCoordinatorRelationalFailureAborts(t *testing.T) {
	docs := &fakeDocumentStore{failFor: 1 << 30}
	vecs := &fakeVectorStore{}
	graph := &fakeGraphStore{}
	journal := newFakeJournal()
	c := newTestCoordinator(docs, vecs, graph, journal)

	failed, err := c.Persist(context.Background(), testBundle())
	require.Error(t, err)
	assert.Contains(t, err.Error(), StoreRelational)
	assert.Nil(t, failed)

	// Retried per policy, then gave up without touching the other stores.
	assert.Equal(t, 2, docs.calls)
	assert.Equal(t, 0, vecs.calls)
	assert.Equal(t, 0, graph.calls)
	assert.Empty(t, journal.tasks)
}

func TestCoordinatorRelationalRetrySucceeds(t *testing.T) {
	docs := &fakeDocumentStore{failFor: 1}
	vecs := &fakeVectorStore{}
	graph := &fakeGraphStore{}
	journal := newFakeJournal()
	c := newTestCoordinator(docs, vecs, graph, journal)

	failed, err := c.Persist(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, 2, docs.calls)
	assert.Equal(t, 1, vecs.calls)
}

func TestCoordinatorVectorFailureDegrades(t *testing.T) {
	docs := &fakeDocumentStore{}
	vecs := &fakeVectorStore{fail: true}
	graph := &fakeGraphStore{}
	journal := newFakeJournal()
	c := newTestCoordinator(docs, vecs, graph, journal)

	bundle := testBundle()
	failed, err := c.Persist(context.Background(), bundle)
	require.NoError(t, err)
	assert.Equal(t, []string{StoreVector}, failed)

	// The graph write is independent and must still land.
	assert.Equal(t, 1, graph.calls)
	assert.Equal(t, 2, vecs.calls)

	require.Len(t, journal.tasks, 1)
	task := journal.tasks[0]
	assert.True(t, task.NeedEmbed)
	assert.False(t, task.NeedGraph)
	assert.Equal(t, "ing-123", task.IngestionId)
	assert.Equal(t, bundle.Document.Id, task.DocumentId)
	// Only the chunks whose vectors were lost; the never-embedded chunk
	// is queued by the embedding stage, not here.
	assert.Equal(t, []core.ID{1, 2}, task.ChunkIds)
	assert.Contains(t, task.LastError, "vector index offline")
}

func TestCoordinatorGraphFailureDegrades(t *testing.T) {
	docs := &fakeDocumentStore{}
	vecs := &fakeVectorStore{}
	graph := &fakeGraphStore{fail: true}
	journal := newFakeJournal()
	c := newTestCoordinator(docs, vecs, graph, journal)

	failed, err := c.Persist(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, []string{StoreGraph}, failed)
	assert.Equal(t, 1, vecs.calls)

	require.Len(t, journal.tasks, 1)
	task := journal.tasks[0]
	assert.False(t, task.NeedEmbed)
	assert.True(t, task.NeedGraph)
	assert.Empty(t, task.ChunkIds)
	assert.Contains(t, task.LastError, "neo4j unreachable")
}

func TestCoordinatorBothEnrichmentWritesFail(t *testing.T) {
	docs := &fakeDocumentStore{}
	vecs := &fakeVectorStore{fail: true}
	graph := &fakeGraphStore{fail: true}
	journal := newFakeJournal()
	c := newTestCoordinator(docs, vecs, graph, journal)

	failed, err := c.Persist(context.Background(), testBundle())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{StoreVector, StoreGraph}, failed)

	require.Len(t, journal.tasks, 1)
	task := journal.tasks[0]
	assert.True(t, task.NeedEmbed)
	assert.True(t, task.NeedGraph)
	assert.Contains(t, task.LastError, "vector index offline")
	assert.Contains(t, task.LastError, "neo4j unreachable")
}

func TestCoordinatorJournalFailureDoesNotError(t *testing.T) {
	docs := &fakeDocumentStore{}
	vecs := &fakeVectorStore{fail: true}
	graph := &fakeGraphStore{}
	journal := newFakeJournal()
	journal.fail = true
	c := newTestCoordinator(docs, vecs, graph, journal)

	failed, err := c.Persist(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, []string{StoreVector}, failed)
	assert.Empty(t, journal.tasks)
}

func TestCoordinatorRejectsEmptyBundle(t *testing.T) {
	c := newTestCoordinator(&fakeDocumentStore{}, &fakeVectorStore{}, &fakeGraphStore{}, newFakeJournal())

	_, err := c.Persist(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = c.Persist(context.Background(), &Bundle{})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
