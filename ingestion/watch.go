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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write
// event before submitting a file.
const DefaultDebounce = 500 * time.Millisecond

// Watcher submits files created or modified under a directory. Events
// are debounced per path so a file still being written is submitted
// once, after it settles.
type Watcher struct {
	pipeline *Pipeline
	dir      string
	project  string
	tags     []string
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	timers  map[string]*time.Timer
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the settle delay before a changed file is submitted.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherTags sets tags applied to every submitted file.
func WithWatcherTags(tags []string) WatcherOption {
	return func(w *Watcher) { w.tags = tags }
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a watcher that submits files appearing under dir
// into the given project.
func NewWatcher(pipeline *Pipeline, dir, project string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		pipeline: pipeline,
		dir:      dir,
		project:  project,
		debounce: DefaultDebounce,
		timers:   make(map[string]*time.Timer),
		logger:   slog.Default().With("component", "watcher", "dir", dir),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns once the filesystem watch is
// established; events are handled on a background goroutine until Stop.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrWatcherRunning
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.running = true
	go w.loop(fsw, w.done)

	w.logger.Info("watching for new files")
	return nil
}

// Stop ends watching and cancels pending debounce timers. Files already
// submitted keep processing.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	fsw, done := w.fsw, w.done
	w.mu.Unlock()

	err := fsw.Close()
	<-done

	w.mu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// schedule arms (or re-arms) the debounce timer for a path.
func (w *Watcher) schedule(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

// fire runs when a path's debounce timer elapses. A fired timer can
// lose the race with Stop, so it re-checks under the lock before
// submitting.
func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}
	w.submit(path)
}

func (w *Watcher) submit(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("cannot read watched file", "path", path, "err", err)
		return
	}

	id, err := w.pipeline.SubmitFile(context.Background(), SubmitRequest{
		Filename: path,
		Content:  data,
		Project:  w.project,
		Tags:     w.tags,
	})
	if err != nil {
		w.logger.Warn("failed to submit watched file", "path", path, "err", err)
		return
	}
	w.logger.Info("submitted watched file", "path", path, "ingestion", id)
}
