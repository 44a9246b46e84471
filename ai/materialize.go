package ai

import (
	"time"

	"github.com/poiesic/weavit/core"
)

// Materialize converts a normalized extraction result into storable
// entities and relationships attributed to the given document. Callers
// should pass the output of NormalizeResult; Materialize performs no
// deduplication of its own.
func Materialize(res *ExtractionResult, documentID core.ID, seen time.Time) ([]*core.Entity, []*core.Relationship) {
	if res == nil {
		return nil, nil
	}

	entities := make([]*core.Entity, 0, len(res.Entities))
	for _, e := range res.Entities {
		entities = append(entities, &core.Entity{
			Name:        e.Name,
			Type:        e.Type,
			Description: e.Description,
			LastSeen:    seen,
		})
	}

	relationships := make([]*core.Relationship, 0, len(res.Relationships))
	for _, r := range res.Relationships {
		relationships = append(relationships, &core.Relationship{
			Source:     r.From,
			Target:     r.To,
			Type:       r.Type,
			Context:    r.Context,
			DocumentId: documentID,
		})
	}

	return entities, relationships
}
