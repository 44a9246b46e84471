package journal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/storage"
)

func newTestJournal(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	j, err := open("", true, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func testJob(id string, status core.JobStatus, started time.Time) *core.IngestionJob {
	return &core.IngestionJob{
		IngestionId: id,
		Status:      status,
		Progress:    10,
		Filename:    "report.pdf",
		Project:     "demo",
		StartedAt:   started,
	}
}

// jobExpiresAt reads the raw BadgerDB entry TTL for a job record.
func jobExpiresAt(t *testing.T, j *Journal, ingestionID string) uint64 {
	t.Helper()
	var expires uint64
	err := j.backend.withTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeJobKey(ingestionID))
		if err != nil {
			return err
		}
		expires = item.ExpiresAt()
		return nil
	}, false)
	require.NoError(t, err)
	return expires
}

func TestSaveAndGetJob(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	job := testJob("ing-1", core.StatusProcessing, time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))
	job.DocumentId = 42
	job.ChunkCount = 3
	job.TokenCount = 512

	require.NoError(t, j.SaveJob(ctx, job))

	got, err := j.GetJob(ctx, "ing-1")
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestGetJobNotFound(t *testing.T) {
	j := newTestJournal(t)

	_, err := j.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveJobValidation(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	assert.ErrorIs(t, j.SaveJob(ctx, nil), storage.ErrInvalidQuery)
	assert.ErrorIs(t, j.SaveJob(ctx, &core.IngestionJob{}), storage.ErrInvalidQuery)
}

func TestTerminalJobGetsRetentionTTL(t *testing.T) {
	j := newTestJournal(t, WithRetention(time.Hour))
	ctx := context.Background()

	job := testJob("ing-ttl", core.StatusProcessing, time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, j.SaveJob(ctx, job))
	assert.Zero(t, jobExpiresAt(t, j, "ing-ttl"), "active jobs must not expire")

	job.Status = core.StatusCompleted
	require.NoError(t, j.SaveJob(ctx, job))
	assert.Positive(t, jobExpiresAt(t, j, "ing-ttl"))
}

func TestListJobs(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.SaveJob(ctx, testJob("ing-a", core.StatusProcessing, base)))
	require.NoError(t, j.SaveJob(ctx, testJob("ing-b", core.StatusProcessing, base.Add(2*time.Minute))))
	require.NoError(t, j.SaveJob(ctx, testJob("ing-c", core.StatusProcessing, base.Add(time.Minute))))

	jobs, err := j.ListJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "ing-b", jobs[0].IngestionId)
	assert.Equal(t, "ing-c", jobs[1].IngestionId)
	assert.Equal(t, "ing-a", jobs[2].IngestionId)

	jobs, err = j.ListJobs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "ing-b", jobs[0].IngestionId)

	_, err = j.ListJobs(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestSyncTaskLifecycle(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2025, 7, 2, 8, 0, 0, 0, time.UTC)
	first := &storage.SyncTask{
		IngestionId: "ing-1",
		DocumentId:  10,
		NeedEmbed:   true,
		ChunkIds:    []core.ID{1, 2},
		CreatedAt:   base,
	}
	second := &storage.SyncTask{
		IngestionId: "ing-2",
		DocumentId:  11,
		NeedGraph:   true,
		CreatedAt:   base.Add(time.Minute),
	}

	require.NoError(t, j.EnqueueSyncTask(ctx, first))
	require.NoError(t, j.EnqueueSyncTask(ctx, second))
	assert.NotEmpty(t, first.Id)
	assert.NotEmpty(t, second.Id)
	assert.NotEqual(t, first.Id, second.Id)

	tasks, err := j.NextSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.Id, tasks[0].Id, "oldest task comes first")
	assert.Equal(t, []core.ID{1, 2}, tasks[0].ChunkIds)
	assert.True(t, tasks[0].NeedEmbed)
	assert.False(t, tasks[0].NeedGraph)

	tasks[0].Attempts = 1
	tasks[0].LastError = "vector index offline"
	require.NoError(t, j.UpdateSyncTask(ctx, tasks[0]))

	tasks, err = j.NextSyncTasks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Attempts)
	assert.Equal(t, "vector index offline", tasks[0].LastError)

	require.NoError(t, j.DeleteSyncTask(ctx, first.Id))
	tasks, err = j.NextSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, second.Id, tasks[0].Id)
}

func TestUpdateMissingSyncTask(t *testing.T) {
	j := newTestJournal(t)

	err := j.UpdateSyncTask(context.Background(), &storage.SyncTask{Id: "nope"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteMissingSyncTask(t *testing.T) {
	j := newTestJournal(t)

	assert.NoError(t, j.DeleteSyncTask(context.Background(), "nope"))
	assert.ErrorIs(t, j.DeleteSyncTask(context.Background(), ""), storage.ErrInvalidQuery)
}

func TestClosedJournalRejectsOperations(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.Close())

	ctx := context.Background()
	err := j.SaveJob(ctx, testJob("ing-x", core.StatusQueued, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	_, err = j.GetJob(ctx, "ing-x")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestOpenMemory(t *testing.T) {
	j, err := OpenMemory(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	ctx := context.Background()
	require.NoError(t, j.SaveJob(ctx, testJob("ing-mem", core.StatusQueued, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))))

	got, err := j.GetJob(ctx, "ing-mem")
	require.NoError(t, err)
	assert.Equal(t, core.StatusQueued, got.Status)
}
