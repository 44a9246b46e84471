package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EntityExtractor extracts named entities and the relationships between them
// from text. Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// ExtractEntities analyzes text and returns the entities it mentions
	// together with the relationships connecting them.
	// Returns a result with empty slices if nothing is found.
	// Returns an error if extraction fails.
	ExtractEntities(ctx context.Context, text string) (*ExtractionResult, error)
}

// ExtractionResult is the combined output of a single extraction pass.
// Results are raw extractor output; callers normalize them with
// NormalizeResult before persisting.
type ExtractionResult struct {
	Entities      []ExtractedEntity
	Relationships []ExtractedRelationship
}

// ExtractedEntity represents a named entity identified in text.
type ExtractedEntity struct {
	// Type categorizes the entity (e.g., "TECHNOLOGY", "PERSON", "FILE").
	// See EntityTypes for the canonical set.
	Type string

	// Name is the entity as it appears in the text.
	// Example: "PostgreSQL", "docker-compose.yml"
	Name string

	// Description is a one-sentence summary of the entity's role in the text.
	// May be empty.
	Description string
}

// ExtractedRelationship represents a directed connection between two
// extracted entities, identified by their names.
type ExtractedRelationship struct {
	// From is the name of the source entity.
	From string

	// To is the name of the target entity.
	To string

	// Type labels the relationship, an UPPERCASE_WITH_UNDERSCORES token.
	// Example: "DEPENDS_ON", "AUTHORED_BY"
	Type string

	// Context is the text fragment that evidences the relationship.
	// May be empty.
	Context string
}

// Transcriber converts audio into timed text.
// Implementations must be thread-safe for concurrent use.
type Transcriber interface {
	// Transcribe converts the audio file at the given path into a transcript
	// with per-segment timing. The file must be a format the backing service
	// accepts (WAV is always safe).
	// Returns an error if transcription fails or is unsupported.
	Transcribe(ctx context.Context, audioPath string) (*Transcript, error)
}

// Transcript is the output of a transcription request.
type Transcript struct {
	// Text is the full transcript with segments joined by single spaces.
	Text string

	// Segments are the timed speech segments in playback order.
	Segments []Segment

	// Language is the detected ISO 639-1 language code, if reported.
	Language string
}

// Segment is one timed span of speech within a transcript.
// Start and End are in seconds from the beginning of the audio.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder, EntityExtractor, and Transcriber
// instances, ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// EntityExtractor returns the entity extraction service.
	// The returned EntityExtractor is safe for concurrent use.
	EntityExtractor() EntityExtractor

	// Transcriber returns the audio transcription service.
	// The returned Transcriber is safe for concurrent use.
	Transcriber() Transcriber

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
