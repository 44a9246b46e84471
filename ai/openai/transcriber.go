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


package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/weavit/ai"
)

// Transcriber implements ai.Transcriber against OpenAI-compatible
// /audio/transcriptions endpoints (OpenAI, faster-whisper-server, LocalAI).
// langchaingo has no transcription surface, so this speaks HTTP directly.
type Transcriber struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// newTranscriber is an internal constructor that returns the concrete type.
// Returns (nil, nil) when the config has no transcriber host or model; the
// provider then reports transcription as unsupported.
func newTranscriber(config *ai.Config) (*Transcriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.TranscriberHost == "" || config.TranscriptionModel == "" {
		return nil, nil
	}

	return &Transcriber{
		endpoint: strings.TrimSuffix(config.TranscriberHost, "/") + "/audio/transcriptions",
		model:    config.TranscriptionModel,
		apiKey:   config.APIKey,
		client:   &http.Client{},
		logger:   slog.Default().With("component", "openai-transcriber"),
	}, nil
}

// NewTranscriber creates a new transcriber using the provided configuration.
//
// Returns ai.Transcriber interface to enforce abstraction.
// Returns ai.ErrTranscriptionUnsupported if the config disables transcription.
func NewTranscriber(config *ai.Config) (ai.Transcriber, error) {
	t, err := newTranscriber(config)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ai.ErrTranscriptionUnsupported
	}
	return t, nil
}

// transcriptionResponse mirrors the verbose_json response format.
type transcriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads the audio file as multipart form data and returns the
// timed transcript. Segments with empty text are dropped.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (*ai.Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return nil, err
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	t.logger.Debug("uploading audio for transcription",
		"file", filepath.Base(audioPath),
		"model", t.model,
		"bytes", body.Len())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transcription service returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}

	out := &ai.Transcript{
		Language: parsed.Language,
		Segments: make([]ai.Segment, 0, len(parsed.Segments)),
	}
	texts := make([]string, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		out.Segments = append(out.Segments, ai.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
		texts = append(texts, text)
	}
	if len(texts) > 0 {
		out.Text = strings.Join(texts, " ")
	} else {
		out.Text = strings.TrimSpace(parsed.Text)
	}

	t.logger.Debug("transcription complete",
		"segments", len(out.Segments),
		"language", out.Language)

	return out, nil
}

// unsupportedTranscriber satisfies ai.Transcriber for providers with no
// transcription backend configured.
type unsupportedTranscriber struct{}

func (unsupportedTranscriber) Transcribe(context.Context, string) (*ai.Transcript, error) {
	return nil, ai.ErrTranscriptionUnsupported
}
