// Package progress tracks the status of ingestion jobs.
//
// The Tracker holds the latest ProcessingProgress snapshot per ingestion
// ID and enforces the forward-only status sequence: an update that would
// move a job backward is ignored. Every accepted update is published to
// the job's subscribers with fire-and-forget semantics, so a slow or
// disconnected subscriber can never block the pipeline.
package progress
