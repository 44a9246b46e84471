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


// Package journal persists ingestion job records and reconciliation sync
// tasks in a local BadgerDB database, so both survive restarts.
//
// Job records expire: once a job reaches a terminal status its record is
// rewritten with a TTL, and the journal never needs manual cleanup. Sync
// tasks live until the reconciliation sweep completes or abandons them.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/storage"
)

const defaultRetention = 7 * 24 * time.Hour

// Journal implements storage.JobJournal on BadgerDB.
type Journal struct {
	backend   *backend
	retention time.Duration
	logger    *slog.Logger
}

var _ storage.JobJournal = (*Journal)(nil)

// Option configures the journal.
type Option func(*Journal)

// WithRetention sets how long terminal job records are kept.
func WithRetention(d time.Duration) Option {
	return func(j *Journal) { j.retention = d }
}

// WithLogger sets the journal's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) { j.logger = logger }
}

// Open opens (or creates) the journal database in dir.
func Open(dir string, opts ...Option) (storage.JobJournal, error) {
	return open(dir, false, opts...)
}

// OpenMemory opens an in-memory journal. Intended for tests.
func OpenMemory(opts ...Option) (storage.JobJournal, error) {
	return open("", true, opts...)
}

func open(dir string, inMemory bool, opts ...Option) (*Journal, error) {
	j := &Journal{
		retention: defaultRetention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}

	b, err := openBackend(dir, inMemory, j.logger)
	if err != nil {
		return nil, err
	}
	j.backend = b
	return j, nil
}

// SaveJob writes a job record, overwriting any previous state. Terminal
// records are written with the retention TTL so they expire instead of
// accumulating.
func (j *Journal) SaveJob(ctx context.Context, job *core.IngestionJob) error {
	if job == nil || job.IngestionId == "" {
		return fmt.Errorf("%w: job has no ingestion id", storage.ErrInvalidQuery)
	}

	data, err := encode(job)
	if err != nil {
		return err
	}

	return j.backend.withTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.IngestionId)
		if job.Status.Terminal() {
			entry := badger.NewEntry(key, data).WithTTL(j.retention)
			if err := tx.SetEntry(entry); err != nil {
				return err
			}
		} else if err := tx.Set(key, data); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetJob retrieves a job by ingestion ID.
func (j *Journal) GetJob(ctx context.Context, ingestionID string) (*core.IngestionJob, error) {
	var job *core.IngestionJob
	err := j.backend.withTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeJobKey(ingestionID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			job = &core.IngestionJob{}
			return decode(val, job)
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs retrieves up to limit job records, most recently started first.
func (j *Journal) ListJobs(ctx context.Context, limit int) ([]*core.IngestionJob, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var jobs []*core.IngestionJob
	err := j.backend.withTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var job core.IngestionJob
			err := iter.Item().Value(func(val []byte) error {
				return decode(val, &job)
			})
			if err != nil {
				return err
			}
			jobs = append(jobs, &job)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Terminal records expire, so the scanned set stays small enough to
	// sort in memory.
	slices.SortFunc(jobs, func(a, b *core.IngestionJob) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// EnqueueSyncTask persists a sync task, assigning its ID and timestamps
// when unset.
func (j *Journal) EnqueueSyncTask(ctx context.Context, task *storage.SyncTask) error {
	if task == nil {
		return fmt.Errorf("%w: nil sync task", storage.ErrInvalidQuery)
	}

	now := time.Now().UTC()
	if task.Id == "" {
		task.Id = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	data, err := encode(task)
	if err != nil {
		return err
	}

	return j.backend.withTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeSyncTaskKey(task.Id), data); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// NextSyncTasks retrieves up to limit pending tasks, oldest first.
func (j *Journal) NextSyncTasks(ctx context.Context, limit int) ([]*storage.SyncTask, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var tasks []*storage.SyncTask
	err := j.backend.withTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(syncTaskPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var task storage.SyncTask
			err := iter.Item().Value(func(val []byte) error {
				return decode(val, &task)
			})
			if err != nil {
				return err
			}
			tasks = append(tasks, &task)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(tasks, func(a, b *storage.SyncTask) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Id, b.Id)
	})
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// UpdateSyncTask overwrites an existing task, bumping its UpdatedAt.
func (j *Journal) UpdateSyncTask(ctx context.Context, task *storage.SyncTask) error {
	if task == nil || task.Id == "" {
		return fmt.Errorf("%w: sync task has no id", storage.ErrInvalidQuery)
	}

	task.UpdatedAt = time.Now().UTC()
	data, err := encode(task)
	if err != nil {
		return err
	}

	return j.backend.withTx(func(tx *badger.Txn) error {
		key := makeSyncTaskKey(task.Id)
		if _, err := tx.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Set(key, data); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteSyncTask removes a task. Deleting a missing task is not an error.
func (j *Journal) DeleteSyncTask(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty sync task id", storage.ErrInvalidQuery)
	}
	return j.backend.withTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeSyncTaskKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.backend.close()
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
	}
	return data, nil
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
	}
	return nil
}
