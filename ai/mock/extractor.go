package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/weavit/ai"
)

// MockExtractor is a test double for ai.EntityExtractor.
// It allows custom behavior injection via function fields.
type MockExtractor struct {
	// ExtractEntitiesFunc is called by ExtractEntities if set.
	// If nil, uses default simple word extraction.
	ExtractEntitiesFunc func(ctx context.Context, text string) (*ai.ExtractionResult, error)

	callCount atomic.Int64
}

// NewMockExtractor creates a mock entity extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

// ExtractEntities extracts simple mock entities from text.
/// Default behavior: the first few distinct words become CONCEPT entities,
// and consecutive entities are linked with RELATED_TO relationships.
func (m *MockExtractor) ExtractEntities(ctx context.Context, text string) (*ai.ExtractionResult, error) {
	m.callCount.Add(1)

	if m.ExtractEntitiesFunc != nil {
		return m.ExtractEntitiesFunc(ctx, text)
	}

	result := &ai.ExtractionResult{}
	seen := make(map[string]bool)
	for _, word := range strings.Fields(text) {
		if len(result.Entities) >= 5 {
			break
		}

		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) < 4 || seen[strings.ToLower(word)] {
			continue
		}
		seen[strings.ToLower(word)] = true

		result.Entities = append(result.Entities, ai.ExtractedEntity{
			Type:        "CONCEPT",
			Name:        word,
			Description: "mock entity",
		})
	}

	for i := 1; i < len(result.Entities); i++ {
		result.Relationships = append(result.Relationships, ai.ExtractedRelationship{
			From: result.Entities[i-1].Name,
			To:   result.Entities[i].Name,
			Type: ai.RelationshipDefault,
		})
	}

	return result, nil
}

// CallCount returns the number of times ExtractEntities was called.
func (m *MockExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockExtractor) Reset() {
	m.callCount.Store(0)
	m.ExtractEntitiesFunc = nil
}
