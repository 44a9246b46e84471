package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeResult_DeduplicatesEntities(t *testing.T) {
	res := &ExtractionResult{
		Entities: []ExtractedEntity{
			{Type: "technology", Name: "PostgreSQL", Description: "relational database"},
			{Type: "TECHNOLOGY", Name: "postgresql", Description: "a different description"},
			{Type: "technology", Name: "POSTGRESQL"},
		},
	}

	out := NormalizeResult(res)

	require.Len(t, out.Entities, 1)
	assert.Equal(t, "TECHNOLOGY", out.Entities[0].Type)
	assert.Equal(t, "PostgreSQL", out.Entities[0].Name)
	// First occurrence wins, description included.
	assert.Equal(t, "relational database", out.Entities[0].Description)
}

func TestNormalizeResult_SameNameDifferentType(t *testing.T) {
	res := &ExtractionResult{
		Entities: []ExtractedEntity{
			{Type: "PERSON", Name: "Mercury"},
			{Type: "LOCATION", Name: "Mercury"},
		},
	}

	out := NormalizeResult(res)

	// Identity is (type, lowercase name), so both survive.
	assert.Len(t, out.Entities, 2)
}

func TestNormalizeResult_EntityTypes(t *testing.T) {
	res := &ExtractionResult{
		Entities: []ExtractedEntity{
			{Type: "technology", Name: "Redis"},
			{Type: "man made object", Name: "Eiffel Tower"},
			{Type: "", Name: "resilience"},
			{Type: "  file  ", Name: "main.go"},
		},
	}

	out := NormalizeResult(res)

	require.Len(t, out.Entities, 4)
	assert.Equal(t, "TECHNOLOGY", out.Entities[0].Type)
	assert.Equal(t, "MAN_MADE_OBJECT", out.Entities[1].Type)
	assert.Equal(t, "CONCEPT", out.Entities[2].Type)
	assert.Equal(t, "FILE", out.Entities[3].Type)
}

func TestNormalizeResult_DropsNamelessEntities(t *testing.T) {
	res := &ExtractionResult{
		Entities: []ExtractedEntity{
			{Type: "PERSON", Name: "   "},
			{Type: "PERSON", Name: ""},
			{Type: "PERSON", Name: "Ada Lovelace"},
		},
	}

	out := NormalizeResult(res)

	require.Len(t, out.Entities, 1)
	assert.Equal(t, "Ada Lovelace", out.Entities[0].Name)
}

func TestNormalizeResult_RelationshipTypes(t *testing.T) {
	entities := []ExtractedEntity{
		{Type: "TECHNOLOGY", Name: "weavit"},
		{Type: "TECHNOLOGY", Name: "badger"},
	}

	tests := []struct {
		name     string
		relType  string
		expected string
	}{
		{"already canonical", "DEPENDS_ON", "DEPENDS_ON"},
		{"lowercase with space", "depends on", "DEPENDS_ON"},
		{"hyphenated", "built-with", "BUILT_WITH"},
		{"mixed junk", "  Uses / Wraps  ", "USES_WRAPS"},
		{"empty becomes default", "", RelationshipDefault},
		{"punctuation only becomes default", "---", RelationshipDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &ExtractionResult{
				Entities: entities,
				Relationships: []ExtractedRelationship{
					{From: "weavit", To: "badger", Type: tt.relType},
				},
			}

			out := NormalizeResult(res)

			require.Len(t, out.Relationships, 1)
			assert.Equal(t, tt.expected, out.Relationships[0].Type)
		})
	}
}

func TestNormalizeResult_DropsUnknownEndpoints(t *testing.T) {
	res := &ExtractionResult{
		Entities: []ExtractedEntity{
			{Type: "TECHNOLOGY", Name: "Go"},
		},
		Relationships: []ExtractedRelationship{
			{From: "Go", To: "Rust", Type: "COMPARED_TO"},
			{From: "Python", To: "Go", Type: "COMPARED_TO"},
			{From: "Go", To: "go", Type: "SELF"},
		},
	}

	out := NormalizeResult(res)

	// Only the relationship whose endpoints both resolve survives.
	require.Len(t, out.Relationships, 1)
	assert.Equal(t, "SELF", out.Relationships[0].Type)
}

func TestNormalizeResult_EndpointMatchIsCaseInsensitive(t *testing.T) {
	res := &ExtractionResult{
		Entities: []ExtractedEntity{
			{Type: "PERSON", Name: "Grace Hopper"},
			{Type: "TECHNOLOGY", Name: "COBOL"},
		},
		Relationships: []ExtractedRelationship{
			{From: "grace hopper", To: "cobol", Type: "CREATED"},
		},
	}

	out := NormalizeResult(res)

	require.Len(t, out.Relationships, 1)
	assert.Equal(t, "grace hopper", out.Relationships[0].From)
}

func TestNormalizeResult_DeduplicatesRelationships(t *testing.T) {
	res := &ExtractionResult{
		Entities: []ExtractedEntity{
			{Type: "SERVICE", Name: "api"},
			{Type: "DATABASE", Name: "postgres"},
		},
		Relationships: []ExtractedRelationship{
			{From: "api", To: "postgres", Type: "reads from"},
			{From: "API", To: "Postgres", Type: "READS_FROM"},
			{From: "api", To: "postgres", Type: "WRITES_TO"},
		},
	}

	out := NormalizeResult(res)

	assert.Len(t, out.Relationships, 2)
}

func TestNormalizeResult_NilInput(t *testing.T) {
	out := NormalizeResult(nil)

	require.NotNil(t, out)
	assert.Empty(t, out.Entities)
	assert.Empty(t, out.Relationships)
}

func TestNormalizeResult_DoesNotModifyInput(t *testing.T) {
	res := &ExtractionResult{
		Entities: []ExtractedEntity{
			{Type: "technology", Name: "Redis"},
		},
	}

	NormalizeResult(res)

	assert.Equal(t, "technology", res.Entities[0].Type)
}

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"DEPENDS_ON", "DEPENDS_ON"},
		{"depends on", "DEPENDS_ON"},
		{"depends-on", "DEPENDS_ON"},
		{"depends   on", "DEPENDS_ON"},
		{"_leading_and_trailing_", "LEADING_AND_TRAILING"},
		{"http/2", "HTTP_2"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeToken(tt.in), "input %q", tt.in)
	}
}
