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


package progress

import (
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/weavit/core"
)

// DefaultBuffer is the default per-subscriber channel capacity.
const DefaultBuffer = 16

// Tracker is a concurrency-safe map from ingestion ID to the latest
// status snapshot, with per-job publish/subscribe streaming.
type Tracker struct {
	mu      sync.RWMutex
	jobs    map[string]core.ProcessingProgress
	subs    map[string]map[int]chan core.ProcessingProgress
	nextSub int
	buffer  int
	logger  *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithBuffer sets the capacity of each subscriber channel. A subscriber
// whose channel is full loses events rather than slowing the publisher.
func WithBuffer(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.buffer = n
		}
	}
}

// WithLogger sets the tracker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		jobs:   make(map[string]core.ProcessingProgress),
		subs:   make(map[string]map[int]chan core.ProcessingProgress),
		buffer: DefaultBuffer,
		logger: slog.Default().With("component", "progress"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Update records a new snapshot for the job and publishes it to the
// job's subscribers. The status sequence is forward-only: an update
// ranked below the current status, or any status change after a
// terminal status, is ignored and Update returns false.
//
// A terminal update closes the job's subscriber channels after the
// final snapshot is delivered.
func (t *Tracker) Update(ingestionID string, status core.JobStatus, percent int, message string, details map[string]string) bool {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.jobs[ingestionID]; ok {
		if current.Status.Terminal() && status != current.Status {
			t.logger.Debug("ignoring status change after terminal state",
				"ingestion", ingestionID, "current", current.Status, "proposed", status)
			return false
		}
		if status.Rank() < current.Status.Rank() {
			t.logger.Debug("ignoring backward status update",
				"ingestion", ingestionID, "current", current.Status, "proposed", status)
			return false
		}
	}

	snapshot := core.ProcessingProgress{
		IngestionId: ingestionID,
		Status:      status,
		Percent:     percent,
		Message:     message,
		Details:     details,
		UpdatedAt:   time.Now().UTC(),
	}
	t.jobs[ingestionID] = snapshot

	// Fire-and-forget publish: a full channel drops the event instead
	// of blocking the pipeline.
	for _, ch := range t.subs[ingestionID] {
		select {
		case ch <- snapshot:
		default:
		}
	}

	if status.Terminal() {
		for _, ch := range t.subs[ingestionID] {
			close(ch)
		}
		delete(t.subs, ingestionID)
	}

	return true
}

// Get returns the latest snapshot for the job, if any.
func (t *Tracker) Get(ingestionID string) (*core.ProcessingProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot, ok := t.jobs[ingestionID]
	if !ok {
		return nil, false
	}
	return &snapshot, true
}

// Subscribe registers for the job's future updates. The channel is
// closed when the job reaches a terminal status. The returned function
// unsubscribes; it is safe to call after the channel closed.
func (t *Tracker) Subscribe(ingestionID string) (<-chan core.ProcessingProgress, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan core.ProcessingProgress, t.buffer)

	// A job already terminal gets its final snapshot and an immediate
	// close rather than a registration that would never fire.
	if snapshot, ok := t.jobs[ingestionID]; ok && snapshot.Status.Terminal() {
		ch <- snapshot
		close(ch)
		return ch, func() {}
	}

	id := t.nextSub
	t.nextSub++
	if t.subs[ingestionID] == nil {
		t.subs[ingestionID] = make(map[int]chan core.ProcessingProgress)
	}
	t.subs[ingestionID][id] = ch

	unsubscribe := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if ch, ok := t.subs[ingestionID][id]; ok {
			delete(t.subs[ingestionID], id)
			close(ch)
		}
	}
	return ch, unsubscribe
}
