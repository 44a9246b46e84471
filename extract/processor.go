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
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/weavit/ai"
	"github.com/poiesic/weavit/core"
)

const (
	// DefaultTesseractPath is the OCR executable resolved from PATH.
	DefaultTesseractPath = "tesseract"
	// DefaultFFmpegPath is the transcoder executable resolved from PATH.
	DefaultFFmpegPath = "ffmpeg"
	// DefaultToolTimeout bounds a single external tool invocation.
	DefaultToolTimeout = 5 * time.Minute
)

// Input is one classified file handed to a Processor: the raw bytes plus
// where they came from and what the detector decided they are.
type Input struct {
	// Path is the original file path or URL, used for titles and for
	// handing the content to external tools. It may no longer exist on
	// disk; processors that need a real file materialize one.
	Path   string
	Data   []byte
	Format core.Format
}

// Result is the extracted content of one file.
type Result struct {
	Text     string
	Metadata Metadata
	// Segments carries speech segments with second-precision timestamps.
	// Set only by the transcription processor.
	Segments []ai.Segment
	// SplitPoints are rune offsets into Text where a chunk boundary is
	// safe (declaration starts). Set only by the code processor.
	SplitPoints []int
}

// Metadata describes the extracted content.
type Metadata struct {
	Title    string
	Pages    int
	Words    int
	Language string
	Extra    map[string]string
}

// Processor turns one classified file into extracted text. Implementations
// must be safe for concurrent use; the pipeline shares them across its
// worker pool.
type Processor interface {
	Process(ctx context.Context, input Input) (*Result, error)
}

// Registry maps processing methods to their Processor. Lookups never fail:
// an unknown method resolves to the generic text processor.
type Registry struct {
	processors map[core.Method]Processor
	fallback   Processor
}

// Option configures a Registry.
type Option func(*registryConfig)

type registryConfig struct {
	transcriber ai.Transcriber
	tesseract   string
	ffmpeg      string
	toolTimeout time.Duration
	logger      *slog.Logger
}

// WithTranscriber sets the speech-to-text service used by the
// transcription processor.
func WithTranscriber(t ai.Transcriber) Option {
	return func(c *registryConfig) {
		c.transcriber = t
	}
}

// WithTesseractPath sets the OCR executable.
func WithTesseractPath(path string) Option {
	return func(c *registryConfig) {
		if path != "" {
			c.tesseract = path
		}
	}
}

// WithFFmpegPath sets the audio transcoder executable.
func WithFFmpegPath(path string) Option {
	return func(c *registryConfig) {
		if path != "" {
			c.ffmpeg = path
		}
	}
}

// WithToolTimeout bounds each external tool invocation.
func WithToolTimeout(d time.Duration) Option {
	return func(c *registryConfig) {
		if d > 0 {
			c.toolTimeout = d
		}
	}
}

// NewRegistry builds the standard processor set: document-parser,
// lightweight, ocr, transcription, archive, code, and the generic text
// fallback.
func NewRegistry(opts ...Option) *Registry {
	cfg := &registryConfig{
		tesseract:   DefaultTesseractPath,
		ffmpeg:      DefaultFFmpegPath,
		toolTimeout: DefaultToolTimeout,
		logger:      slog.Default().With("component", "extract"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	text := &textProcessor{}
	r := &Registry{
		processors: make(map[core.Method]Processor),
		fallback:   text,
	}

	r.Register(core.MethodText, text)
	r.Register(core.MethodLightweight, &lightweightProcessor{})
	r.Register(core.MethodDocumentParser, &documentProcessor{logger: cfg.logger})
	r.Register(core.MethodCode, &codeProcessor{logger: cfg.logger})
	r.Register(core.MethodArchive, &archiveProcessor{logger: cfg.logger})
	r.Register(core.MethodOCR, &ocrProcessor{
		binary:  cfg.tesseract,
		timeout: cfg.toolTimeout,
		logger:  cfg.logger,
	})
	r.Register(core.MethodTranscription, &mediaProcessor{
		transcriber: cfg.transcriber,
		ffmpeg:      cfg.ffmpeg,
		timeout:     cfg.toolTimeout,
		logger:      cfg.logger,
	})

	return r
}

// Register installs or replaces the processor for a method.
func (r *Registry) Register(method core.Method, p Processor) {
	r.processors[method] = p
}

// Get returns the processor for a method, falling back to the generic
// text processor so that callers never dispatch on nil.
func (r *Registry) Get(method core.Method) Processor {
	if p, ok := r.processors[method]; ok {
		return p
	}
	return r.fallback
}

// materialize returns an on-disk path for the input. URL ingestions hand
// bytes whose source path never existed locally; those are written to a
// temp file carrying the original extension so external tools can sniff
// the container format. cleanup removes the temp file and is a no-op for
// inputs already on disk.
func materialize(input Input) (path string, cleanup func(), err error) {
	if input.Path != "" {
		if _, statErr := os.Stat(input.Path); statErr == nil {
			return input.Path, func() {}, nil
		}
	}

	ext := filepath.Ext(input.Path)
	if ext == "" {
		ext = ".bin"
	}
	f, err := os.CreateTemp("", "weavit-input-*"+ext)
	if err != nil {
		return "", nil, err
	}
	name := f.Name()
	if _, err := f.Write(input.Data); err != nil {
		f.Close()
		os.Remove(name)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", nil, err
	}
	return name, func() { os.Remove(name) }, nil
}

// titleFromPath derives a human title from a file name: the extension is
// dropped and separator punctuation becomes spaces.
func titleFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// coerceUTF8 turns raw bytes into valid UTF-8 text, dropping a BOM and
// replacing invalid sequences.
func coerceUTF8(data []byte) string {
	s := string(data)
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToValidUTF8(s, "�")
}

// normalizeText collapses runs of spaces within lines and runs of blank
// lines, and trims the result. Markup-derived text arrives with heavy
// incidental whitespace; chunking wants prose.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		folded := strings.Join(strings.Fields(line), " ")
		if folded == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, folded)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
