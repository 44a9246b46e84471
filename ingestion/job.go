// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/weavit/ai"
	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/detect"
	"github.com/poiesic/weavit/extract"
	"github.com/poiesic/weavit/storage"
)

func newJob(filename, project string) *core.IngestionJob {
	return &core.IngestionJob{
		IngestionId: uuid.NewString(),
		Status:      core.StatusQueued,
		Filename:    filename,
		Project:     project,
		StartedAt:   time.Now().UTC(),
	}
}

// runJob drives one document through the fixed stage sequence. Every
// exit path leaves the job in a terminal status with a journal record.
func (p *Pipeline) runJob(ctx context.Context, job *core.IngestionJob, req SubmitRequest) {
	logger := p.logger.With("ingestion", job.IngestionId, "file", req.Filename)

	if p.halted(ctx, job) {
		return
	}
	p.transition(job, core.StatusProcessing, 10, "extracting content", nil)

	detection := p.detector.Detect(req.Filename, req.Content)
	logger.Debug("format detected",
		"format", detection.Format, "method", detection.Method, "by", detection.DetectedBy)

	processor := p.registry.Get(detection.Method)
	result, err := processor.Process(ctx, extract.Input{
		Path:   req.Filename,
		Data:   req.Content,
		Format: detection.Format,
	})
	if err != nil {
		logger.Error("content extraction failed", "err", err)
		p.fail(job, core.ErrorKindProcessing, err)
		return
	}

	doc := p.buildDocument(req, detection, result)
	job.DocumentId = doc.Id

	if p.halted(ctx, job) {
		return
	}
	p.transition(job, core.StatusChunking, 40, "chunking text", nil)

	chunks := p.splitChunks(doc, result)
	job.ChunkCount = len(chunks)
	for _, c := range chunks {
		if c.Language == "" {
			c.Language = result.Metadata.Language
		}
		job.TokenCount += c.TokenCount
	}

	if p.halted(ctx, job) {
		return
	}
	p.transition(job, core.StatusEmbedding, 55,
		fmt.Sprintf("embedding %d chunks", len(chunks)), nil)

	failedEmbeds := p.embedChunks(ctx, chunks)
	if len(failedEmbeds) > 0 {
		logger.Warn("some chunks missing embeddings",
			"failed", len(failedEmbeds), "total", len(chunks))
	}

	if p.halted(ctx, job) {
		return
	}
	p.transition(job, core.StatusEmbedding, 75, "extracting entities", nil)

	entities, relationships := p.extractEntities(ctx, doc)
	logger.Debug("entities extracted",
		"entities", len(entities), "relationships", len(relationships))

	if p.halted(ctx, job) {
		return
	}
	p.transition(job, core.StatusStoring, 85, "writing stores", nil)

	failedStores, err := p.coordinator.Persist(ctx, &storage.Bundle{
		IngestionId:   job.IngestionId,
		Document:      doc,
		Chunks:        chunks,
		Entities:      entities,
		Relationships: relationships,
	})
	if err != nil {
		p.fail(job, core.ErrorKindStoreWrite, err)
		return
	}

	// Chunks the embedder could not serve are journaled now that their
	// content is durable in the relational store.
	if len(failedEmbeds) > 0 {
		task := &storage.SyncTask{
			IngestionId: job.IngestionId,
			DocumentId:  doc.Id,
			NeedEmbed:   true,
			ChunkIds:    failedEmbeds,
			LastError:   "embedding unavailable during ingestion",
		}
		if err := p.journal.EnqueueSyncTask(context.Background(), task); err != nil {
			logger.Error("failed to journal embedding retry", "err", err)
		}
	}

	details := map[string]string{
		"document_id": strconv.FormatUint(uint64(doc.Id), 10),
		"chunks":      strconv.Itoa(len(chunks)),
		"tokens":      strconv.Itoa(job.TokenCount),
	}

	switch {
	case len(failedStores) > 0:
		job.FailedStores = failedStores
		job.ErrorKind = core.ErrorKindStoreWrite
		details["failed_stores"] = strings.Join(failedStores, ",")
		p.complete(job, core.StatusPartial,
			"stored with degraded enrichment: "+strings.Join(failedStores, ", "), details)
	case len(failedEmbeds) > 0:
		job.ErrorKind = core.ErrorKindEmbedding
		details["pending_embeddings"] = strconv.Itoa(len(failedEmbeds))
		p.complete(job, core.StatusPartial,
			fmt.Sprintf("stored with %d chunks awaiting embeddings", len(failedEmbeds)), details)
	default:
		p.complete(job, core.StatusCompleted, "ingestion complete", details)
	}
	logger.Info("ingestion finished",
		"status", job.Status, "chunks", len(chunks), "took", job.ProcessingTime)
}

// buildDocument assembles the document record from the extraction result.
// Identity hashes project, source, and extracted text, so re-ingesting
// the same content lands on the same row.
func (p *Pipeline) buildDocument(req SubmitRequest, detection *detect.Result, result *extract.Result) *core.Document {
	now := time.Now().UTC()

	metadata := make(map[string]string, len(req.Metadata)+4)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["detected_by"] = detection.DetectedBy
	if detection.MIME != "" {
		metadata["mime"] = detection.MIME
	}
	if result.Metadata.Pages > 0 {
		metadata["pages"] = strconv.Itoa(result.Metadata.Pages)
	}
	if result.Metadata.Language != "" {
		metadata["language"] = result.Metadata.Language
	}
	for k, v := range result.Metadata.Extra {
		metadata[k] = v
	}

	title := result.Metadata.Title
	if title == "" {
		title = req.Filename
	}

	return &core.Document{
		Id:        core.IDFromContent(req.Project + "\x00" + req.Filename + "\x00" + result.Text),
		Title:     title,
		Content:   result.Text,
		Source:    req.Filename,
		Project:   req.Project,
		DocType:   detection.Format,
		Tags:      req.Tags,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// splitChunks picks the chunking mode the extraction result calls for:
// transcript segments keep speech boundaries, code splits at
// declarations, everything else gets fixed windows.
func (p *Pipeline) splitChunks(doc *core.Document, result *extract.Result) []*core.Chunk {
	switch {
	case len(result.Segments) > 0:
		return p.chunker.SplitSegments(doc, result.Segments)
	case len(result.SplitPoints) > 0:
		return p.chunker.SplitAt(doc, result.SplitPoints)
	default:
		return p.chunker.Split(doc)
	}
}

// extractEntities runs the primary extractor under its timeout with the
// deterministic fallback behind it, then normalizes and materializes
// the result. It never fails the job.
func (p *Pipeline) extractEntities(ctx context.Context, doc *core.Document) ([]*core.Entity, []*core.Relationship) {
	extractCtx, cancel := context.WithTimeout(ctx, p.extractTimeout)
	defer cancel()

	raw, _ := p.extractor.ExtractEntities(extractCtx, doc.Content)
	normalized := ai.NormalizeResult(raw)
	return ai.Materialize(normalized, doc.Id, time.Now().UTC())
}

// halted checks for cancellation between stages. A canceled job gets a
// terminal failed record; committed store writes stay committed.
func (p *Pipeline) halted(ctx context.Context, job *core.IngestionJob) bool {
	if ctx.Err() == nil {
		return false
	}
	job.Error = "ingestion canceled"
	p.complete(job, core.StatusFailed, job.Error, nil)
	p.logger.Info("ingestion canceled", "ingestion", job.IngestionId)
	return true
}

// transition advances the job one stage and records it in the tracker
// and the journal.
func (p *Pipeline) transition(job *core.IngestionJob, status core.JobStatus, percent int, message string, details map[string]string) {
	job.Status = status
	job.Progress = percent
	p.tracker.Update(job.IngestionId, status, percent, message, details)
	if err := p.journal.SaveJob(context.Background(), job); err != nil {
		p.logger.Warn("failed to journal job transition",
			"ingestion", job.IngestionId, "status", status, "err", err)
	}
}

func (p *Pipeline) fail(job *core.IngestionJob, kind core.ErrorKind, cause error) {
	job.Error = cause.Error()
	job.ErrorKind = kind
	p.complete(job, core.StatusFailed, job.Error, nil)
}

// complete moves the job to a terminal status.
func (p *Pipeline) complete(job *core.IngestionJob, status core.JobStatus, message string, details map[string]string) {
	job.Status = status
	job.Progress = 100
	job.CompletedAt = time.Now().UTC()
	job.ProcessingTime = job.CompletedAt.Sub(job.StartedAt)
	p.tracker.Update(job.IngestionId, status, 100, message, details)
	if err := p.journal.SaveJob(context.Background(), job); err != nil {
		p.logger.Error("failed to journal terminal job state",
			"ingestion", job.IngestionId, "status", status, "err", err)
	}
}
