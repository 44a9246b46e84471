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


package gemini

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/weavit/ai"
	"google.golang.org/api/option"
)

// Provider implements ai.AIProvider using the Google Gemini API.
// One genai client is shared by the embedder and the entity extractor.
// Gemini exposes no whisper-style transcription endpoint, so Transcriber()
// returns a stub reporting ai.ErrTranscriptionUnsupported.
type Provider struct {
	client    *genai.Client
	embedder  *Embedder
	extractor *EntityExtractor
	logger    *slog.Logger
}

// NewProvider creates a new AI provider backed by the Gemini API.
// Only APIKey, EmbeddingModel, ExtractorModel, and MaxTextLength are read
// from the config; the host fields apply to OpenAI-compatible services and
// are ignored here.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction.
func NewProvider(ctx context.Context, config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.APIKey == "" {
		return nil, errors.New("gemini provider: APIKey is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, err
	}

	return &Provider{
		client:    client,
		embedder:  newEmbedder(client, config),
		extractor: newEntityExtractor(client, config),
		logger:    slog.Default().With("component", "gemini-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// EntityExtractor returns the entity extraction service.
func (p *Provider) EntityExtractor() ai.EntityExtractor {
	return p.extractor
}

// Transcriber returns the audio transcription service.
func (p *Provider) Transcriber() ai.Transcriber {
	return unsupportedTranscriber{}
}

// Close releases the underlying genai client.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return p.client.Close()
}

// unsupportedTranscriber satisfies ai.Transcriber; Gemini has no
// transcription backend.
type unsupportedTranscriber struct{}

func (unsupportedTranscriber) Transcribe(context.Context, string) (*ai.Transcript, error) {
	return nil, ai.ErrTranscriptionUnsupported
}
