package mock

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/poiesic/weavit/ai"
)

// MockTranscriber is a test double for ai.Transcriber.
// It allows custom behavior injection via function fields.
type MockTranscriber struct {
	// TranscribeFunc is called by Transcribe if set.
	// If nil, uses default deterministic behavior.
	TranscribeFunc func(ctx context.Context, audioPath string) (*ai.Transcript, error)

	callCount atomic.Int64
}

// NewMockTranscriber creates a mock transcriber with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockTranscriber().
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{}
}

// Transcribe returns a deterministic two-segment transcript derived from the
// audio file name, so callers can assert on stable content without audio.
func (m *MockTranscriber) Transcribe(ctx context.Context, audioPath string) (*ai.Transcript, error) {
	m.callCount.Add(1)

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audioPath)
	}

	name := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	segments := []ai.Segment{
		{Start: 0.0, End: 2.5, Text: "mock transcript of " + name},
		{Start: 2.5, End: 5.0, Text: "second segment"},
	}
	return &ai.Transcript{
		Text:     segments[0].Text + " " + segments[1].Text,
		Segments: segments,
		Language: "en",
	}, nil
}

// CallCount returns the number of times Transcribe was called.
func (m *MockTranscriber) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockTranscriber) Reset() {
	m.callCount.Store(0)
	m.TranscribeFunc = nil
}
