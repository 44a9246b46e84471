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
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/weavit/core"
)

// BatchRequest describes a folder submission.
type BatchRequest struct {
	Root      string `validate:"required"`
	Patterns  []string
	Recursive bool
	// Concurrency bounds parallel file reads during submission, not
	// document processing; that stays bounded by the pipeline's pool.
	Concurrency int
	Project     string
	Tags        []string
	Metadata    map[string]string
}

// URLRequest describes a URL submission.
type URLRequest struct {
	URL      string `validate:"required,url"`
	Project  string
	Tags     []string
	Metadata map[string]string
}

// SubmitBatch submits every file under the root that matches the glob
// patterns and returns their ingestion IDs. A file that cannot be read
// becomes a FAILED job; it never stops the rest of the batch.
func (p *Pipeline) SubmitBatch(ctx context.Context, req BatchRequest) ([]string, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	paths, err := p.collectFiles(req)
	if err != nil {
		return nil, err
	}

	concurrency := req.Concurrency
	if concurrency < 1 {
		concurrency = DefaultDocumentWorkers
	}

	var mu sync.Mutex
	var ids []string

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, filePath := range paths {
		filePath := filePath
		group.Go(func() error {
			var id string
			data, err := os.ReadFile(filePath)
			if err != nil {
				p.logger.Warn("unreadable file in batch", "path", filePath, "err", err)
				id = p.submitUnreadable(filePath, req.Project, err)
			} else {
				id, err = p.SubmitFile(groupCtx, SubmitRequest{
					Filename: filePath,
					Content:  data,
					Project:  req.Project,
					Tags:     req.Tags,
					Metadata: req.Metadata,
				})
				if err != nil {
					p.logger.Warn("batch submission failed", "path", filePath, "err", err)
					return nil
				}
			}
			mu.Lock()
			ids = append(ids, id)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return ids, err
	}

	return ids, nil
}

// SubmitURL fetches the URL and submits the response body as a file.
// Fetch problems surface here, at submission time; once the content is
// downloaded the submission follows the file path.
func (p *Pipeline) SubmitURL(ctx context.Context, req URLRequest) (string, error) {
	if err := validate.Struct(req); err != nil {
		return "", err
	}

	data, contentType, err := p.fetch(ctx, req.URL)
	if err != nil {
		return "", err
	}

	return p.SubmitFile(ctx, SubmitRequest{
		Filename: filenameFromURL(req.URL, contentType, data),
		Content:  data,
		Project:  req.Project,
		Tags:     req.Tags,
		Metadata: req.Metadata,
	})
}

// collectFiles walks the batch root and returns the matching file paths.
func (p *Pipeline) collectFiles(req BatchRequest) ([]string, error) {
	patterns := req.Patterns
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	matches := func(name string) bool {
		for _, pattern := range patterns {
			if ok, err := filepath.Match(pattern, name); err == nil && ok {
				return true
			}
		}
		return false
	}

	var paths []string
	if req.Recursive {
		err := filepath.WalkDir(req.Root, func(entryPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !matches(d.Name()) {
				return nil
			}
			paths = append(paths, entryPath)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", req.Root, err)
		}
		return paths, nil
	}

	entries, err := os.ReadDir(req.Root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.Root, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !matches(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(req.Root, entry.Name()))
	}
	return paths, nil
}

// submitUnreadable records a terminal FAILED job for input that could
// not be read at all, so the batch result still names every file.
func (p *Pipeline) submitUnreadable(filename, project string, cause error) string {
	job := newJob(filename, project)
	job.Error = cause.Error()
	job.ErrorKind = core.ErrorKindFatal
	p.complete(job, core.StatusFailed, job.Error, nil)
	return job.IngestionId
}

// fetch downloads the URL under the pipeline's timeout and size cap.
func (p *Pipeline) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %s", rawURL, response.Status)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, p.maxFetchBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read response from %s: %w", rawURL, err)
	}
	if int64(len(data)) > p.maxFetchBytes {
		return nil, "", fmt.Errorf("%w: %s is over %d bytes", ErrFetchTooLarge, rawURL, p.maxFetchBytes)
	}

	return data, response.Header.Get("Content-Type"), nil
}

// filenameFromURL derives a filename for detection. The URL path wins
// when it carries an extension; otherwise the Content-Type hint and
// finally content sniffing supply one.
func filenameFromURL(rawURL, contentType string, data []byte) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}

	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		name = parsed.Hostname()
	}
	if path.Ext(name) != "" {
		return name
	}

	base, _, _ := strings.Cut(contentType, ";")
	if m := mimetype.Lookup(strings.TrimSpace(base)); m != nil && m.Extension() != "" {
		return name + m.Extension()
	}
	return name + mimetype.Detect(data).Extension()
}
