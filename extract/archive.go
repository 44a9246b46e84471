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


package extract

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	// maxArchiveEntries caps how many members are expanded and listed.
	maxArchiveEntries = 10000
	// maxArchiveBytes caps the total decompressed size written to disk,
	// the zip-bomb guard.
	maxArchiveBytes = 1 << 30
	// maxListedEntries caps the file listing in the summary text.
	maxListedEntries = 500
)

var errSizeBudget = errors.New("extraction size budget exhausted")

type archiveEntry struct {
	name string
	size int64
	dir  bool
}

// archiveProcessor expands zip, tar, tar.gz, tgz, and zst archives into
// a scoped temp directory and summarizes their contents. Members are
// never recursively re-ingested; the summary is the document.
type archiveProcessor struct {
	logger *slog.Logger
}

var _ Processor = (*archiveProcessor)(nil)

func (p *archiveProcessor) Process(ctx context.Context, input Input) (*Result, error) {
	tempDir, err := os.MkdirTemp("", "weavit-archive-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	entries, truncated, err := p.expand(ctx, tempDir, input.Data)
	if err != nil {
		return nil, err
	}

	text := summarizeArchive(filepath.Base(input.Path), entries, truncated)
	return &Result{
		Text: text,
		Metadata: Metadata{
			Title: titleFromPath(input.Path),
			Words: countWords(text),
			Extra: map[string]string{"entries": strconv.Itoa(len(entries))},
		},
	}, nil
}

// expand routes on the container's magic bytes rather than the file
// extension; a .tgz and a renamed .zip both end up in the right place.
func (p *archiveProcessor) expand(ctx context.Context, dir string, data []byte) ([]archiveEntry, bool, error) {
	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return p.expandZip(ctx, dir, data)

	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, false, fmt.Errorf("gzip open: %w", err)
		}
		defer gz.Close()
		return p.expandStream(ctx, dir, gz, gz.Name)

	case bytes.HasPrefix(data, []byte{0x28, 0xb5, 0x2f, 0xfd}):
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, false, fmt.Errorf("zstd open: %w", err)
		}
		defer dec.Close()
		return p.expandStream(ctx, dir, dec, "")

	default:
		return p.expandTar(ctx, dir, tar.NewReader(bytes.NewReader(data)))
	}
}

// expandStream handles a decompressed gzip/zstd stream, which is either
// a tar archive or a single compressed file.
func (p *archiveProcessor) expandStream(ctx context.Context, dir string, r io.Reader, name string) ([]archiveEntry, bool, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	if isTarHeader(head) {
		return p.expandTar(ctx, dir, tar.NewReader(br))
	}

	if name == "" {
		name = "content"
	}
	target, err := safeJoin(dir, name)
	if err != nil {
		return nil, false, err
	}
	n, err := writeBounded(target, br, maxArchiveBytes)
	if errors.Is(err, errSizeBudget) {
		return []archiveEntry{{name: name, size: n}}, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []archiveEntry{{name: name, size: n}}, false, nil
}

func isTarHeader(head []byte) bool {
	return len(head) >= 262 && string(head[257:262]) == "ustar"
}

func (p *archiveProcessor) expandZip(ctx context.Context, dir string, data []byte) ([]archiveEntry, bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, false, fmt.Errorf("zip open: %w", err)
	}

	var entries []archiveEntry
	var total int64
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if len(entries) >= maxArchiveEntries {
			return entries, true, nil
		}
		if f.FileInfo().IsDir() {
			entries = append(entries, archiveEntry{name: f.Name, dir: true})
			continue
		}

		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return nil, false, err
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false, fmt.Errorf("zip entry %s: %w", f.Name, err)
		}
		n, err := writeBounded(target, rc, maxArchiveBytes-total)
		rc.Close()
		if errors.Is(err, errSizeBudget) {
			p.logger.Warn("archive expansion hit size budget", "entry", f.Name)
			return entries, true, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("zip entry %s: %w", f.Name, err)
		}
		total += n
		entries = append(entries, archiveEntry{name: f.Name, size: n})
	}
	return entries, false, nil
}

func (p *archiveProcessor) expandTar(ctx context.Context, dir string, tr *tar.Reader) ([]archiveEntry, bool, error) {
	var entries []archiveEntry
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("tar read: %w", err)
		}
		if len(entries) >= maxArchiveEntries {
			return entries, true, nil
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			entries = append(entries, archiveEntry{name: hdr.Name, dir: true})
		case tar.TypeReg:
			target, err := safeJoin(dir, hdr.Name)
			if err != nil {
				return nil, false, err
			}
			n, err := writeBounded(target, tr, maxArchiveBytes-total)
			if errors.Is(err, errSizeBudget) {
				p.logger.Warn("archive expansion hit size budget", "entry", hdr.Name)
				return entries, true, nil
			}
			if err != nil {
				return nil, false, fmt.Errorf("tar entry %s: %w", hdr.Name, err)
			}
			total += n
			entries = append(entries, archiveEntry{name: hdr.Name, size: n})
		default:
			// symlinks and device nodes are never materialized
		}
	}
	return entries, false, nil
}

// safeJoin resolves an archive entry name under dir and rejects names
// that would climb out of it.
func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, name)
	if target != dir && !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchivePath, name)
	}
	return target, nil
}

// writeBounded writes at most limit bytes of r to path, creating parent
// directories. Exceeding the limit aborts with errSizeBudget.
func writeBounded(path string, r io.Reader, limit int64) (int64, error) {
	if limit <= 0 {
		return 0, errSizeBudget
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, io.LimitReader(r, limit))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}
	if n == limit {
		var one [1]byte
		if m, _ := r.Read(one[:]); m > 0 {
			return n, errSizeBudget
		}
	}
	return n, nil
}

// summarizeArchive renders the bounded listing that stands in for the
// archive's content.
func summarizeArchive(name string, entries []archiveEntry, truncated bool) string {
	var files, dirs int
	var total int64
	counts := make(map[string]int)
	for _, e := range entries {
		if e.dir {
			dirs++
			continue
		}
		files++
		total += e.size
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(e.name), "."))
		if ext == "" {
			ext = "none"
		}
		counts[ext]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Archive %s: %d files", name, files)
	if dirs > 0 {
		fmt.Fprintf(&b, ", %d directories", dirs)
	}
	fmt.Fprintf(&b, ", %s total.\n", byteSize(total))

	if len(counts) > 0 {
		type extCount struct {
			ext string
			n   int
		}
		sorted := make([]extCount, 0, len(counts))
		for ext, n := range counts {
			sorted = append(sorted, extCount{ext, n})
		}
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].n != sorted[j].n {
				return sorted[i].n > sorted[j].n
			}
			return sorted[i].ext < sorted[j].ext
		})
		parts := make([]string, 0, len(sorted))
		for _, c := range sorted {
			parts = append(parts, fmt.Sprintf("%s (%d)", c.ext, c.n))
		}
		fmt.Fprintf(&b, "Types: %s\n", strings.Join(parts, ", "))
	}

	b.WriteString("\nContents:\n")
	listed := 0
	for _, e := range entries {
		if e.dir {
			continue
		}
		if listed >= maxListedEntries {
			fmt.Fprintf(&b, "  ... and %d more\n", files-listed)
			break
		}
		fmt.Fprintf(&b, "  %s (%s)\n", e.name, byteSize(e.size))
		listed++
	}
	if truncated {
		b.WriteString("Listing truncated at the extraction limits.\n")
	}
	return b.String()
}

func byteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
