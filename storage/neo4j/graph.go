// Package neo4j implements the entity graph store on a Neo4j server.
//
// Every write is a Cypher MERGE keyed on stable identities, so replaying
// a document after a partial ingestion converges instead of duplicating
// nodes. The one stateful exception is the RELATES edge counter, which
// tracks how often a relationship has been observed.
package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/storage"
)

const mergeDocumentCypher = `
MERGE (d:Document {id: $id})
SET d.title = $title,
    d.source = $source,
    d.doc_type = $doc_type,
    d.project = $project,
    d.updated_at = $updated_at`

const mergeProjectCypher = `
MATCH (d:Document {id: $id})
MERGE (p:Project {name: $project})
MERGE (d)-[:IN_PROJECT]->(p)`

const mergeTagsCypher = `
MATCH (d:Document {id: $id})
UNWIND $tags AS tag
MERGE (t:Tag {name: tag})
MERGE (d)-[:HAS_TAG]->(t)`

const mergeEntitiesCypher = `
MATCH (d:Document {id: $id})
UNWIND $entities AS entity
MERGE (e:Entity {name: entity.name, type: entity.type})
ON CREATE SET e.description = entity.description
ON MATCH SET e.description = CASE WHEN e.description = '' THEN entity.description ELSE e.description END
SET e.display_name = entity.display_name,
    e.last_seen = entity.last_seen
MERGE (d)-[:MENTIONS]->(e)`

const mergeRelationshipsCypher = `
UNWIND $rels AS rel
MATCH (a:Entity {name: rel.source, type: rel.source_type})
MATCH (b:Entity {name: rel.target, type: rel.target_type})
MERGE (a)-[r:RELATES {type: rel.type}]->(b)
ON CREATE SET r.count = 1, r.context = rel.context, r.document_id = rel.document_id
ON MATCH SET r.count = r.count + 1, r.context = rel.context`

type graphStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// Option configures the graph store.
type Option func(*graphStore)

// WithDatabase selects a database other than the server default.
func WithDatabase(name string) Option {
	return func(s *graphStore) { s.database = name }
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *graphStore) { s.logger = logger }
}

// New connects to Neo4j and verifies the server is reachable.
func New(ctx context.Context, uri, username, password string, opts ...Option) (storage.GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	s := &graphStore{
		driver:   driver,
		database: "neo4j",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return s, nil
}

// MergeDocumentGraph merges the whole bundle for one document inside a
// single managed transaction.
func (s *graphStore) MergeDocumentGraph(ctx context.Context, doc *core.Document, entities []*core.Entity, rels []*core.Relationship) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", storage.ErrInvalidQuery)
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	docID := graphID(doc.Id)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, mergeDocumentCypher, map[string]any{
			"id":         docID,
			"title":      doc.Title,
			"source":     doc.Source,
			"doc_type":   string(doc.DocType),
			"project":    doc.Project,
			"updated_at": doc.UpdatedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("merge document node: %w", err)
		}

		if doc.Project != "" {
			if _, err := tx.Run(ctx, mergeProjectCypher, map[string]any{
				"id": docID, "project": doc.Project,
			}); err != nil {
				return nil, fmt.Errorf("merge project: %w", err)
			}
		}

		if len(doc.Tags) > 0 {
			if _, err := tx.Run(ctx, mergeTagsCypher, map[string]any{
				"id": docID, "tags": stringList(doc.Tags),
			}); err != nil {
				return nil, fmt.Errorf("merge tags: %w", err)
			}
		}

		if len(entities) > 0 {
			if _, err := tx.Run(ctx, mergeEntitiesCypher, map[string]any{
				"id": docID, "entities": entityParams(entities),
			}); err != nil {
				return nil, fmt.Errorf("merge entities: %w", err)
			}
		}

		if params := relationshipParams(entities, rels); len(params) > 0 {
			if _, err := tx.Run(ctx, mergeRelationshipsCypher, map[string]any{
				"rels": params,
			}); err != nil {
				return nil, fmt.Errorf("merge relationships: %w", err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("document graph merged",
		"document", doc.Id, "entities", len(entities), "relationships", len(rels))
	return nil
}

func (s *graphStore) Close() error {
	return s.driver.Close(context.Background())
}

// graphID renders an ID as a decimal string. Graph keys stay readable
// and avoid the BIGINT sign wrap used in the relational store.
func graphID(id core.ID) string {
	return strconv.FormatUint(uint64(id), 10)
}

// entityParams maps entities to UNWIND rows. The node key is the
// lowercased name plus the type; the original casing is kept as a
// display property.
func entityParams(entities []*core.Entity) []any {
	params := make([]any, 0, len(entities))
	for _, e := range entities {
		params = append(params, map[string]any{
			"name":         strings.ToLower(e.Name),
			"display_name": e.Name,
			"type":         e.Type,
			"description":  e.Description,
			"last_seen":    e.LastSeen,
		})
	}
	return params
}

// relationshipParams maps relationships to UNWIND rows, resolving each
// endpoint to its entity identity. Rows whose endpoints are not in the
// entity set are dropped; upstream normalization makes that rare, but a
// replayed merge can carry stale references.
func relationshipParams(entities []*core.Entity, rels []*core.Relationship) []any {
	types := make(map[string]string, len(entities))
	for _, e := range entities {
		name := strings.ToLower(e.Name)
		if _, ok := types[name]; !ok {
			types[name] = e.Type
		}
	}

	var params []any
	for _, r := range rels {
		source := strings.ToLower(r.Source)
		target := strings.ToLower(r.Target)
		sourceType, ok := types[source]
		if !ok {
			continue
		}
		targetType, ok := types[target]
		if !ok {
			continue
		}
		params = append(params, map[string]any{
			"source":      source,
			"source_type": sourceType,
			"target":      target,
			"target_type": targetType,
			"type":        r.Type,
			"context":     r.Context,
			"document_id": graphID(r.DocumentId),
		})
	}
	return params
}

func stringList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
