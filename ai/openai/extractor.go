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
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/poiesic/weavit/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// EntityExtractor implements ai.EntityExtractor using OpenAI-compatible chat APIs.
type EntityExtractor struct {
	client        llms.Model
	maxTextLength int
	logger        *slog.Logger
}

// wireEntity matches the entity element of the response schema.
type wireEntity struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// wireRelationship matches the relationship element of the response schema.
type wireRelationship struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Type    string `json:"type"`
	Context string `json:"context"`
}

// extraction is the wrapper structure for the LLM's JSON response.
type extraction struct {
	Entities      []wireEntity       `json:"entities"`
	Relationships []wireRelationship `json:"relationships"`
}

// newEntityExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEntityExtractor(config *ai.Config) (*EntityExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create OpenAI client configured for chat/extraction
	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken(apiToken(config)),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &EntityExtractor{
		client:        client,
		maxTextLength: config.MaxTextLength,
		logger:        slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewEntityExtractor creates a new entity extractor using the provided configuration.
//
// Returns ai.EntityExtractor interface to enforce abstraction.
func NewEntityExtractor(config *ai.Config) (ai.EntityExtractor, error) {
	return newEntityExtractor(config)
}

// ExtractEntities extracts entities and relationships from text using an LLM.
// Output is raw model output; callers normalize it with ai.NormalizeResult.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text string) (*ai.ExtractionResult, error) {
	// Long inputs are truncated rather than split; the head of a document
	// carries most of its entity density.
	text = truncateText(text, e.maxTextLength)

	systemPrompt := buildSystemPrompt()
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result *extraction
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return &ai.ExtractionResult{}, nil
		}

		result, lastErr = parseExtraction(response.Choices[0].Content)
		if lastErr != nil {
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"err", lastErr)
			continue
		}

		// Success
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
		return nil, lastErr
	}

	out := &ai.ExtractionResult{
		Entities:      make([]ai.ExtractedEntity, 0, len(result.Entities)),
		Relationships: make([]ai.ExtractedRelationship, 0, len(result.Relationships)),
	}
	for _, ent := range result.Entities {
		out.Entities = append(out.Entities, ai.ExtractedEntity{
			Type:        ent.Type,
			Name:        ent.Name,
			Description: ent.Description,
		})
	}
	for _, rel := range result.Relationships {
		out.Relationships = append(out.Relationships, ai.ExtractedRelationship{
			From:    rel.From,
			To:      rel.To,
			Type:    rel.Type,
			Context: rel.Context,
		})
	}

	e.logger.Debug("extracted entities",
		"entities", len(out.Entities),
		"relationships", len(out.Relationships))

	return out, nil
}

// parseExtraction decodes one model response into the wire schema.
// Markdown code fences are stripped and common JSON defects repaired first.
func parseExtraction(raw string) (*extraction, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	text = repairJSON(text)

	var out extraction
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
