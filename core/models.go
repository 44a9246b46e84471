package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing so that re-ingesting
// identical content yields identical identities.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Format identifies the detected content format of an ingested file.
type Format string

const (
	FormatUnknown    Format = "unknown"
	FormatPDF        Format = "pdf"
	FormatDocx       Format = "docx"
	FormatXlsx       Format = "xlsx"
	FormatPptx       Format = "pptx"
	FormatMarkdown   Format = "markdown"
	FormatHTML       Format = "html"
	FormatJSON       Format = "json"
	FormatYAML       Format = "yaml"
	FormatXML        Format = "xml"
	FormatCSV        Format = "csv"
	FormatText       Format = "text"
	FormatGo         Format = "go"
	FormatPython     Format = "python"
	FormatJavaScript Format = "javascript"
	FormatTypeScript Format = "typescript"
	FormatJava       Format = "java"
	FormatC          Format = "c"
	FormatCPP        Format = "cpp"
	FormatRust       Format = "rust"
	FormatRuby       Format = "ruby"
	FormatImage      Format = "image"
	FormatAudio      Format = "audio"
	FormatVideo      Format = "video"
	FormatArchive    Format = "archive"
)

// Method identifies the extraction strategy chosen for a format.
type Method string

const (
	// MethodDocumentParser handles structured documents (PDF, Office files).
	MethodDocumentParser Method = "document-parser"
	// MethodLightweight handles markup and data formats that need only
	// light transformation (markdown, HTML, JSON, YAML, XML, CSV).
	MethodLightweight Method = "lightweight"
	// MethodOCR handles images via an external OCR engine.
	MethodOCR Method = "ocr"
	// MethodTranscription handles audio and video via speech-to-text.
	MethodTranscription Method = "transcription"
	// MethodArchive expands and summarizes archive files.
	MethodArchive Method = "archive"
	// MethodCode handles source code with syntax-aware splitting.
	MethodCode Method = "code"
	// MethodText is the generic fallback for plain or unknown content.
	MethodText Method = "text"
)

// Document is the top-level ingested unit of content and its metadata.
// It is owned by the pipeline from creation until deleted externally and
// is never mutated concurrently by two runs for the same Id.
type Document struct {
	Id        ID
	Title     string
	Content   string // extracted plain text
	Source    string // original file path or URL
	Project   string
	DocType   Format
	Tags      []string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is an ordered, bounded slice of a Document's extracted text,
// the unit of embedding and retrieval.
type Chunk struct {
	Id         ID
	DocumentId ID
	Index      int // 0-based, strictly increasing, unique per document
	// StartOffset and EndOffset are rune offsets into the document text,
	// or millisecond timestamps when TimeOffsets is true.
	StartOffset int64
	EndOffset   int64
	TimeOffsets bool
	Content     string
	Embedding   []float32 // nil until the embedding stage succeeds
	TokenCount  int
	Language    string
}

// Entity is a named concept extracted from content. Identity is
// (Type, lowercase(Name)); entities are merged, never duplicated.
type Entity struct {
	Name        string
	Type        string
	Description string
	LastSeen    time.Time
}

// Key returns the identity tuple "(Type,name)" with the name lowercased.
// This is used for deduplication and deterministic merge keys.
func (e *Entity) Key() string {
	return "(" + e.Type + "," + strings.ToLower(e.Name) + ")"
}

// Relationship is a typed, directed association between two entities,
// identified by (Source, Target, Type). Repeat observations are merged
// with an incremented count rather than duplicated.
type Relationship struct {
	Source     string // source entity name
	Target     string // target entity name
	Type       string // normalized UPPERCASE_WITH_UNDERSCORES token
	Context    string
	DocumentId ID
}

// JobStatus is the processing state of an ingestion job. Statuses move
// only forward through the sequence; see Rank.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusChunking   JobStatus = "chunking"
	StatusEmbedding  JobStatus = "embedding"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

var statusRanks = map[JobStatus]int{
	StatusQueued:     0,
	StatusProcessing: 1,
	StatusChunking:   2,
	StatusEmbedding:  3,
	StatusStoring:    4,
	StatusCompleted:  5,
	StatusFailed:     5,
	StatusPartial:    5,
}

// Rank returns the position of s in the forward-only status sequence.
// Unknown statuses rank below queued.
func (s JobStatus) Rank() int {
	if r, ok := statusRanks[s]; ok {
		return r
	}
	return -1
}

// Terminal reports whether s is a terminal status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// ErrorKind classifies a job failure for status reporting and sweep routing.
type ErrorKind string

const (
	// ErrorKindDetection marks an unrecognized format. Non-fatal: the
	// detector falls back to generic text instead of surfacing this.
	ErrorKindDetection ErrorKind = "detection"
	// ErrorKindProcessing marks a content extraction failure. The job
	// fails; other documents in the batch continue.
	ErrorKindProcessing ErrorKind = "processing"
	// ErrorKindEmbedding marks per-chunk embedding failures. Non-fatal:
	// the chunk persists without a vector and is retried by the sweep.
	ErrorKindEmbedding ErrorKind = "embedding"
	// ErrorKindExtraction marks malformed LLM extraction output. Never
	// surfaced: the deterministic fallback runs instead.
	ErrorKindExtraction ErrorKind = "extraction"
	// ErrorKindStoreWrite marks a per-store write failure.
	ErrorKindStoreWrite ErrorKind = "store_write"
	// ErrorKindFatal marks input that could not be read at all.
	ErrorKindFatal ErrorKind = "fatal"
)

// IngestionJob tracks one submitted file or URL through the pipeline.
// Created at submission, mutated only by the stage that owns it, and
// retained for a configured window after reaching a terminal status.
type IngestionJob struct {
	IngestionId    string
	Status         JobStatus
	Progress       int // 0-100
	Filename       string
	Project        string
	StartedAt      time.Time
	CompletedAt    time.Time // zero until terminal
	ProcessingTime time.Duration
	DocumentId     ID
	ChunkCount     int
	TokenCount     int
	FailedStores   []string // store names that failed when Status is partial
	Error          string
	ErrorKind      ErrorKind
}

// ProcessingProgress is the externally visible snapshot of a job's state.
type ProcessingProgress struct {
	IngestionId string
	Status      JobStatus
	Percent     int
	Message     string
	Details     map[string]string
	UpdatedAt   time.Time
}
