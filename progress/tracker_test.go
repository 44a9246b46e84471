package progress

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/weavit/core"
)

func TestTrackerUpdateAndGet(t *testing.T) {
	tracker := NewTracker()

	ok := tracker.Update("job-1", core.StatusQueued, 0, "queued", nil)
	assert.True(t, ok)

	snapshot, found := tracker.Get("job-1")
	require.True(t, found)
	assert.Equal(t, "job-1", snapshot.IngestionId)
	assert.Equal(t, core.StatusQueued, snapshot.Status)
	assert.Equal(t, 0, snapshot.Percent)
	assert.False(t, snapshot.UpdatedAt.IsZero())
}

func TestTrackerUnknownJob(t *testing.T) {
	tracker := NewTracker()

	_, found := tracker.Get("missing")
	assert.False(t, found)
}

func TestTrackerForwardOnly(t *testing.T) {
	tracker := NewTracker()

	require.True(t, tracker.Update("job-1", core.StatusEmbedding, 60, "", nil))

	t.Run("backward update is ignored", func(t *testing.T) {
		ok := tracker.Update("job-1", core.StatusChunking, 40, "", nil)
		assert.False(t, ok)

		snapshot, _ := tracker.Get("job-1")
		assert.Equal(t, core.StatusEmbedding, snapshot.Status)
		assert.Equal(t, 60, snapshot.Percent)
	})

	t.Run("same status refreshes percent and message", func(t *testing.T) {
		ok := tracker.Update("job-1", core.StatusEmbedding, 70, "42 of 60 chunks", nil)
		assert.True(t, ok)

		snapshot, _ := tracker.Get("job-1")
		assert.Equal(t, 70, snapshot.Percent)
		assert.Equal(t, "42 of 60 chunks", snapshot.Message)
	})

	t.Run("no status change after terminal", func(t *testing.T) {
		require.True(t, tracker.Update("job-1", core.StatusCompleted, 100, "", nil))

		assert.False(t, tracker.Update("job-1", core.StatusFailed, 100, "", nil))
		assert.False(t, tracker.Update("job-1", core.StatusPartial, 100, "", nil))

		snapshot, _ := tracker.Get("job-1")
		assert.Equal(t, core.StatusCompleted, snapshot.Status)
	})
}

func TestTrackerPercentClamped(t *testing.T) {
	tracker := NewTracker()

	tracker.Update("job-1", core.StatusProcessing, 250, "", nil)
	snapshot, _ := tracker.Get("job-1")
	assert.Equal(t, 100, snapshot.Percent)
}

func TestTrackerSubscribe(t *testing.T) {
	tracker := NewTracker()

	ch, unsubscribe := tracker.Subscribe("job-1")
	defer unsubscribe()

	tracker.Update("job-1", core.StatusQueued, 0, "", nil)
	tracker.Update("job-1", core.StatusProcessing, 10, "", nil)
	tracker.Update("job-1", core.StatusCompleted, 100, "", nil)

	var statuses []core.JobStatus
	for snapshot := range ch {
		statuses = append(statuses, snapshot.Status)
	}
	assert.Equal(t, []core.JobStatus{core.StatusQueued, core.StatusProcessing, core.StatusCompleted}, statuses)
}

func TestTrackerSubscribeTerminalJob(t *testing.T) {
	tracker := NewTracker()
	tracker.Update("job-1", core.StatusFailed, 100, "extraction failed", nil)

	ch, unsubscribe := tracker.Subscribe("job-1")
	defer unsubscribe()

	snapshot, open := <-ch
	require.True(t, open)
	assert.Equal(t, core.StatusFailed, snapshot.Status)

	_, open = <-ch
	assert.False(t, open, "channel should close immediately for terminal jobs")
}

func TestTrackerSlowSubscriberDropsEvents(t *testing.T) {
	tracker := NewTracker(WithBuffer(1))

	ch, unsubscribe := tracker.Subscribe("job-1")
	defer unsubscribe()

	// Nobody reads: only the first event fits, the rest are dropped and
	// none of the updates block.
	require.True(t, tracker.Update("job-1", core.StatusQueued, 0, "", nil))
	require.True(t, tracker.Update("job-1", core.StatusProcessing, 10, "", nil))
	require.True(t, tracker.Update("job-1", core.StatusChunking, 40, "", nil))

	snapshot := <-ch
	assert.Equal(t, core.StatusQueued, snapshot.Status)

	// The tracker itself still holds the latest state.
	latest, _ := tracker.Get("job-1")
	assert.Equal(t, core.StatusChunking, latest.Status)
}

func TestTrackerUnsubscribe(t *testing.T) {
	tracker := NewTracker()

	ch, unsubscribe := tracker.Subscribe("job-1")
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	assert.True(t, tracker.Update("job-1", core.StatusQueued, 0, "", nil))

	// Unsubscribing twice is safe.
	unsubscribe()
}

func TestTrackerConcurrentJobsStayIsolated(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", n)
			tracker.Update(id, core.StatusQueued, 0, "", nil)
			tracker.Update(id, core.StatusProcessing, 10, "", nil)
			tracker.Update(id, core.StatusCompleted, 100, id, nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("job-%d", i)
		snapshot, found := tracker.Get(id)
		require.True(t, found, id)
		assert.Equal(t, core.StatusCompleted, snapshot.Status)
		assert.Equal(t, id, snapshot.Message, "messages must not leak across jobs")
	}
}
