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


package chunk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/poiesic/weavit/ai"
	"github.com/poiesic/weavit/core"
)

const (
	// DefaultSize is the default chunk window in runes.
	DefaultSize = 1000
	// DefaultOverlap is the default overlap between consecutive chunks.
	DefaultOverlap = 200
)

// Chunker splits extracted document text into ordered, addressable chunks.
type Chunker struct {
	size    int
	overlap int
	counter TokenCounter
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithSize sets the chunk window size in runes.
func WithSize(n int) Option {
	return func(c *Chunker) error {
		if n <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidSize, n)
		}
		c.size = n
		return nil
	}
}

// WithOverlap sets the overlap between consecutive chunks in runes.
func WithOverlap(n int) Option {
	return func(c *Chunker) error {
		if n < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidOverlap, n)
		}
		c.overlap = n
		return nil
	}
}

// WithTokenCounter sets the counter used to fill Chunk.TokenCount.
func WithTokenCounter(counter TokenCounter) Option {
	return func(c *Chunker) error {
		if counter == nil {
			return ErrNilTokenCounter
		}
		c.counter = counter
		return nil
	}
}

// NewChunker creates a Chunker. Defaults: 1000-rune windows with a
// 200-rune overlap, heuristic token counting.
func NewChunker(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultSize,
		overlap: DefaultOverlap,
		counter: HeuristicCounter{},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.overlap >= c.size {
		return nil, fmt.Errorf("%w: overlap %d, size %d", ErrOverlapTooLarge, c.overlap, c.size)
	}

	return c, nil
}

// Split chunks the document text into fixed windows with overlap.
// Offsets are rune positions. Concatenating the chunk contents with each
// chunk's leading overlap removed reproduces the text exactly.
func (c *Chunker) Split(doc *core.Document) []*core.Chunk {
	runes := []rune(doc.Content)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []*core.Chunk

	index := 0
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		content := string(runes[start:end])
		chunks = append(chunks, &core.Chunk{
			Id:          chunkID(doc.Id, index),
			DocumentId:  doc.Id,
			Index:       index,
			StartOffset: int64(start),
			EndOffset:   int64(end),
			Content:     content,
			TokenCount:  c.counter.Count(content),
		})
		index++
	}

	return chunks
}

// SplitSegments chunks a transcript along speech-segment boundaries.
// Segments are grouped until the window budget is reached and are never
// split. Chunk offsets are millisecond timestamps into the media.
//
// The document content must be the segment texts joined with single
// spaces; each chunk owns its trailing separator so that plain
// concatenation of chunk contents reproduces that text exactly.
func (c *Chunker) SplitSegments(doc *core.Document, segments []ai.Segment) []*core.Chunk {
	if len(segments) == 0 {
		return nil
	}

	var chunks []*core.Chunk
	index := 0
	group := 0 // first segment of the open group
	groupLen := 0

	flush := func(last int) {
		var b strings.Builder
		for j := group; j <= last; j++ {
			b.WriteString(segments[j].Text)
			if j < len(segments)-1 {
				b.WriteByte(' ')
			}
		}

		content := b.String()
		chunks = append(chunks, &core.Chunk{
			Id:          chunkID(doc.Id, index),
			DocumentId:  doc.Id,
			Index:       index,
			StartOffset: int64(segments[group].Start * 1000),
			EndOffset:   int64(segments[last].End * 1000),
			TimeOffsets: true,
			Content:     content,
			TokenCount:  c.counter.Count(content),
			Language:    doc.Metadata["language"],
		})
		index++
	}

	for i, seg := range segments {
		segLen := len([]rune(seg.Text))
		if i > group && groupLen+1+segLen > c.size {
			flush(i - 1)
			group = i
			groupLen = segLen
			continue
		}
		if i > group {
			groupLen += 1 + segLen
		} else {
			groupLen = segLen
		}
	}
	flush(len(segments) - 1)

	return chunks
}

// SplitAt chunks the document text as a partition aligned to the given
// rune offsets (declaration starts from the code processor). Spans are
// merged greedily up to the window size; a span larger than the window
// is cut into window-sized pieces. No overlap: the chunks concatenate
// back to the exact text.
func (c *Chunker) SplitAt(doc *core.Document, breakpoints []int) []*core.Chunk {
	runes := []rune(doc.Content)
	if len(runes) == 0 {
		return nil
	}

	bounds := normalizeBounds(breakpoints, len(runes))

	// Greedy merge of the regions between bounds.
	var spans [][2]int
	regionStart := 0
	for i := 0; i <= len(bounds); i++ {
		end := len(runes)
		if i < len(bounds) {
			end = bounds[i]
		}
		if end == regionStart {
			continue
		}
		if n := len(spans); n > 0 && spans[n-1][1] == regionStart && end-spans[n-1][0] <= c.size {
			spans[n-1][1] = end
		} else {
			spans = append(spans, [2]int{regionStart, end})
		}
		regionStart = end
	}

	var chunks []*core.Chunk
	index := 0
	emit := func(a, b int) {
		content := string(runes[a:b])
		chunks = append(chunks, &core.Chunk{
			Id:          chunkID(doc.Id, index),
			DocumentId:  doc.Id,
			Index:       index,
			StartOffset: int64(a),
			EndOffset:   int64(b),
			Content:     content,
			TokenCount:  c.counter.Count(content),
			Language:    string(doc.DocType),
		})
		index++
	}

	for _, span := range spans {
		a, b := span[0], span[1]
		for b-a > c.size {
			emit(a, a+c.size)
			a += c.size
		}
		if b > a {
			emit(a, b)
		}
	}

	return chunks
}

// normalizeBounds sorts, deduplicates, and clamps breakpoints to (0, limit).
func normalizeBounds(breakpoints []int, limit int) []int {
	cuts := make([]int, 0, len(breakpoints))
	for _, b := range breakpoints {
		if b > 0 && b < limit {
			cuts = append(cuts, b)
		}
	}
	sort.Ints(cuts)

	deduped := cuts[:0]
	prev := -1
	for _, b := range cuts {
		if b != prev {
			deduped = append(deduped, b)
			prev = b
		}
	}
	return deduped
}

// chunkID derives a deterministic chunk identity from the document and
// position so that re-ingestion upserts rather than duplicates.
func chunkID(docID core.ID, index int) core.ID {
	return core.IDFromContent(fmt.Sprintf("%d:%d", docID, index))
}
