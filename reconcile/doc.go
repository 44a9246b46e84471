// Package reconcile converges the three stores after partial ingestion.
//
// The Sweeper is a periodic background service that drains journaled
// sync tasks: chunks left without embeddings are re-embedded and
// upserted into the vector store, and documents whose graph write
// failed get their entities re-extracted and merged. Detection,
// extraction, and chunking are never repeated; the relational store is
// the source the repairs read from. All repair operations are the same
// idempotent upserts and merges ingestion uses, so at-least-once
// delivery is safe.
package reconcile
