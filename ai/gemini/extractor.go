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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/weavit/ai"
)

const extractionPrompt = `Extract the named entities and the relationships between them from the user's text.

Respond with a JSON object of this exact shape:
{"entities":[{"type":"...","name":"...","description":"..."}],
 "relationships":[{"from":"...","to":"...","type":"...","context":"..."}]}

Rules:
- Entity names keep their original casing and punctuation; file names, URLs, and code symbols appear verbatim.
- The entity type field should be one of: %s. Pick the closest match.
- Relationship type must be UPPERCASE_WITH_UNDERSCORES, one to three words.
- The "from" and "to" fields must exactly match the name of an entity in the entities array.
- Include only entities explicitly mentioned in the text. Extract at most 20 entities.
- If nothing can be identified, return empty arrays.`

// EntityExtractor implements ai.EntityExtractor using Gemini generative models
// in JSON response mode.
type EntityExtractor struct {
	model         *genai.GenerativeModel
	maxTextLength int
	logger        *slog.Logger
}

// wire types for the JSON response.
type wireEntity struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type wireRelationship struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Type    string `json:"type"`
	Context string `json:"context"`
}

type extraction struct {
	Entities      []wireEntity       `json:"entities"`
	Relationships []wireRelationship `json:"relationships"`
}

// newEntityExtractor is an internal constructor; the provider owns the client.
func newEntityExtractor(client *genai.Client, config *ai.Config) *EntityExtractor {
	model := client.GenerativeModel(config.ExtractorModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(fmt.Sprintf(extractionPrompt, strings.Join(ai.EntityTypes, ", ")))},
	}
	model.GenerationConfig = genai.GenerationConfig{
		// Force JSON output so parsing rarely needs a second attempt.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &EntityExtractor{
		model:         model,
		maxTextLength: config.MaxTextLength,
		logger:        slog.Default().With("component", "gemini-extractor"),
	}
}

// ExtractEntities extracts entities and relationships from text.
// Output is raw model output; callers normalize it with ai.NormalizeResult.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text string) (*ai.ExtractionResult, error) {
	if e.maxTextLength > 0 {
		runes := []rune(text)
		if len(runes) > e.maxTextLength {
			text = string(runes[:e.maxTextLength])
		}
	}

	// Try up to 3 times in case of malformed JSON
	var result *extraction
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := e.model.GenerateContent(ctx, genai.Text(text))
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			e.logger.Debug("no candidates returned from model")
			return &ai.ExtractionResult{}, nil
		}

		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}

		result, lastErr = parseExtraction(sb.String())
		if lastErr != nil {
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"err", lastErr)
			continue
		}

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
// JSON response mode usually returns clean JSON; fences are stripped anyway.
func parseExtraction(raw string) (*extraction, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var out extraction
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
