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


package rulebased

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/poiesic/weavit/ai"
)

// Extractor implements ai.EntityExtractor with deterministic pattern
// matching. It backs up the LLM path: it needs no network access, never
// returns an error, and may legitimately return an empty result.
// Relationships require inference, so the fallback emits none.
type Extractor struct {
	logger *slog.Logger
}

var _ ai.EntityExtractor = (*Extractor)(nil)

// NewExtractor creates a new rule-based extractor.
//
// Returns ai.EntityExtractor interface to enforce abstraction.
func NewExtractor() ai.EntityExtractor {
	return &Extractor{
		logger: slog.Default().With("component", "rulebased-extractor"),
	}
}

var (
	wordPattern = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9.+#_-]*`)
	urlPattern  = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	filePattern = regexp.MustCompile(`\b[\w./-]*\w+\.(?:go|py|js|jsx|ts|tsx|java|c|h|cpp|hpp|rs|rb|sh|sql|md|ya?ml|json|toml|xml|csv|txt|html|css|pdf|docx|xlsx|pptx|zip|tar|gz|wav|mp3|mp4)\b`)

	funcPattern  = regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)\s*\(|\bdef\s+([A-Za-z_]\w*)\s*\(|\bfunction\s+([A-Za-z_]\w*)\s*\(`)
	classPattern = regexp.MustCompile(`\bclass\s+([A-Za-z_]\w*)|\btype\s+([A-Za-z_]\w*)\s+(?:struct|interface)\b`)
	constPattern = regexp.MustCompile(`\bconst\s+([A-Za-z_]\w*)`)
)

// ExtractEntities scans text for known technology names, file paths, URLs,
// and code symbol declarations. The returned error is always nil.
func (e *Extractor) ExtractEntities(_ context.Context, text string) (*ai.ExtractionResult, error) {
	result := &ai.ExtractionResult{}
	if strings.TrimSpace(text) == "" {
		return result, nil
	}

	add := newEntitySet(result)

	for _, raw := range urlPattern.FindAllString(text, -1) {
		add(ai.ExtractedEntity{Type: "URL", Name: strings.TrimRight(raw, ".,;:!?")})
	}

	// Mask URLs so their path segments don't also match as file names
	// or technology words.
	masked := urlPattern.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat(" ", len(m))
	})

	for _, name := range filePattern.FindAllString(masked, -1) {
		// node.js is a technology, not a file
		if _, known := knownTechnologies[strings.ToLower(name)]; known {
			continue
		}
		add(ai.ExtractedEntity{Type: "FILE", Name: name})
	}

	for _, word := range wordPattern.FindAllString(masked, -1) {
		// The word pattern keeps interior dots for names like node.js,
		// which also drags in sentence-final periods.
		word = strings.TrimRight(word, ".")
		if ent, ok := knownTechnologies[strings.ToLower(word)]; ok {
			add(ent)
		}
	}

	for _, m := range funcPattern.FindAllStringSubmatch(masked, -1) {
		add(ai.ExtractedEntity{Type: "FUNCTION", Name: firstGroup(m)})
	}
	for _, m := range classPattern.FindAllStringSubmatch(masked, -1) {
		add(ai.ExtractedEntity{Type: "CLASS", Name: firstGroup(m)})
	}
	for _, m := range constPattern.FindAllStringSubmatch(masked, -1) {
		add(ai.ExtractedEntity{Type: "CONSTANT", Name: firstGroup(m)})
	}

	e.logger.Debug("rule-based extraction", "entities", len(result.Entities))
	return result, nil
}

// newEntitySet returns an append function that drops entities with empty
// names and duplicate (type, lowercase name) pairs.
func newEntitySet(result *ai.ExtractionResult) func(ai.ExtractedEntity) {
	seen := make(map[string]bool)
	return func(ent ai.ExtractedEntity) {
		if ent.Name == "" {
			return
		}
		key := ent.Type + "\x00" + strings.ToLower(ent.Name)
		if seen[key] {
			return
		}
		seen[key] = true
		result.Entities = append(result.Entities, ent)
	}
}

// firstGroup returns the first non-empty capture group of a regexp match.
func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
