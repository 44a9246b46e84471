// Package ingestion orchestrates the document pipeline.
//
// The Pipeline type accepts files, folders, and URLs and drives each
// document through the fixed stage sequence: format detection, content
// extraction, chunking, embedding, entity extraction, and storage. Each
// submission becomes an IngestionJob processed asynchronously on a
// bounded worker pool, with a separate pool bounding embedding fan-out.
// Stage failures are classified into the job's status and details; no
// error escapes the pipeline after submission succeeds.
package ingestion
