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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/poiesic/weavit/ai"
	"github.com/poiesic/weavit/core"
)

// mediaProcessor transcribes audio and video. Video routes through
// ffmpeg first to pull a mono 16 kHz WAV track; the temporary audio
// artifact is removed on every exit path.
type mediaProcessor struct {
	transcriber ai.Transcriber
	ffmpeg      string
	timeout     time.Duration
	logger      *slog.Logger
}

var _ Processor = (*mediaProcessor)(nil)

func (p *mediaProcessor) Process(ctx context.Context, input Input) (*Result, error) {
	if p.transcriber == nil {
		return nil, ErrNoTranscriber
	}

	path, cleanup, err := materialize(input)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	audioPath := path
	if input.Format == core.FormatVideo {
		wav, err := p.extractAudio(ctx, path)
		if err != nil {
			return nil, err
		}
		defer os.Remove(wav)
		audioPath = wav
	}

	transcript, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", input.Path, err)
	}

	meta := Metadata{
		Title:    titleFromPath(input.Path),
		Words:    countWords(transcript.Text),
		Language: transcript.Language,
	}
	if n := len(transcript.Segments); n > 0 {
		meta.Extra = map[string]string{
			"duration_seconds": strconv.FormatFloat(transcript.Segments[n-1].End, 'f', 1, 64),
		}
	}

	return &Result{
		Text:     transcript.Text,
		Metadata: meta,
		Segments: transcript.Segments,
	}, nil
}

// extractAudio transcodes the video's audio track to a temp WAV file
// the caller owns and must remove. Failures remove it here.
func (p *mediaProcessor) extractAudio(ctx context.Context, videoPath string) (string, error) {
	f, err := os.CreateTemp("", "weavit-audio-*.wav")
	if err != nil {
		return "", err
	}
	out := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(out)
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffmpeg,
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y", out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(out)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("ffmpeg %s: %w", videoPath, ctxErr)
		}
		return "", fmt.Errorf("ffmpeg %s: %w: %s", videoPath, err, tailOf(stderr.Bytes()))
	}
	return out, nil
}

// tailOf keeps the end of tool output, where the actual error lands.
func tailOf(out []byte) string {
	const max = 512
	s := string(bytes.TrimSpace(out))
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
