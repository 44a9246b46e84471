// Package rulebased provides a deterministic ai.EntityExtractor that works
// without any external service.
//
// The ingestion pipeline uses it as the fallback when LLM extraction fails
// or times out: a fixed keyword table recognizes well-known technology
// names, and regular expressions pick up file paths, URLs, and code symbol
// declarations (functions, classes, constants). Extraction never returns an
// error and an empty result is a valid outcome, so a broken extraction
// service degrades ingestion quality without ever failing a document.
package rulebased
