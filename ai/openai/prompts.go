package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/weavit/ai"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": {
            "type": "string"
          },
          "name": {
            "type": "string"
          },
          "description": {
            "type": "string"
          }
        },
        "required": ["type", "name"],
        "additionalProperties": false
      }
    },
    "relationships": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "from": {
            "type": "string"
          },
          "to": {
            "type": "string"
          },
          "type": {
            "type": "string",
            "pattern": "^[A-Z]+(_[A-Z]+)*$"
          },
          "context": {
            "type": "string"
          }
        },
        "required": ["from", "to", "type"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities", "relationships"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `Extract the named entities and the relationships between them from the given text and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Entity names keep their original casing and punctuation; file names, URLs, and code symbols appear verbatim.
- The entity type field should be one of the listed values: %s. Pick the closest match.
- Description is one short sentence about the entity's role in this text. Omit it if there is nothing to say.
- Relationship type must be UPPERCASE_WITH_UNDERSCORES, one to three words. Examples: DEPENDS_ON, AUTHORED_BY, PART_OF.
- The "from" and "to" fields must exactly match the name of an entity in the entities array.
- Include only entities that are explicitly mentioned in the text. Do not hallucinate.
- Extract at most 20 entities; prefer the ones most central to the text.
- If nothing can be identified, return "entities": [] and "relationships": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example (prose):
Input: "Weavit stores document chunks in PostgreSQL and keeps the entity graph in Neo4j."
Output:
{
  "entities": [
    {"type":"TECHNOLOGY","name":"Weavit","description":"document ingestion pipeline"},
    {"type":"DATABASE","name":"PostgreSQL","description":"relational store for document chunks"},
    {"type":"DATABASE","name":"Neo4j","description":"graph store for entities"}
  ],
  "relationships": [
    {"from":"Weavit","to":"PostgreSQL","type":"STORES_IN","context":"stores document chunks in PostgreSQL"},
    {"from":"Weavit","to":"Neo4j","type":"STORES_IN","context":"keeps the entity graph in Neo4j"}
  ]
}

Example (code):
Input: "func NewServer(cfg Config) *Server wires the handler onto chi and reads service.yaml at startup."
Output:
{
  "entities": [
    {"type":"FUNCTION","name":"NewServer","description":"constructs the server"},
    {"type":"CLASS","name":"Server","description":"HTTP server type"},
    {"type":"LIBRARY","name":"chi","description":"HTTP router"},
    {"type":"FILE","name":"service.yaml","description":"startup configuration file"}
  ],
  "relationships": [
    {"from":"NewServer","to":"Server","type":"CONSTRUCTS","context":"NewServer(cfg Config) *Server"},
    {"from":"Server","to":"chi","type":"BUILT_ON","context":"wires the handler onto chi"},
    {"from":"Server","to":"service.yaml","type":"READS","context":"reads service.yaml at startup"}
  ]
}

Example (nothing to extract):
Input: "ok thanks, see you tomorrow"
Output:
{
  "entities": [],
  "relationships": []
}`

// buildSystemPrompt creates the system prompt with entity types embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(extractionPromptTemplate,
		extractionResponseSchema,
		strings.Join(ai.EntityTypes, ", "))
}
