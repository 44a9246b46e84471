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


package core

import (
	"fmt"
	"unicode/utf8"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Id must be set
//   - Source must not be empty
//
// NOT validated (populated by later stages):
//   - Content (can be empty for empty inputs)
//   - Title, Tags, Metadata (optional)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Id == 0 {
		return fmt.Errorf("%w: id is not set", ErrInvalidDocument)
	}

	if doc.Source == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptySource)
	}

	return nil
}

// ValidateChunk validates a single Chunk according to domain rules.
//
// Validation rules:
//   - DocumentId must be set
//   - Index must not be negative
//   - Content must not be empty
//   - EndOffset must not precede StartOffset
//
// NOT validated (populated by later stages):
//   - Embedding (nil until the embedding stage succeeds)
//   - TokenCount, Language (optional)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.DocumentId == 0 {
		return fmt.Errorf("%w: document id is not set", ErrInvalidChunk)
	}

	if chunk.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidChunk, chunk.Index)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.EndOffset < chunk.StartOffset {
		return fmt.Errorf("%w: end offset %d precedes start offset %d",
			ErrInvalidChunk, chunk.EndOffset, chunk.StartOffset)
	}

	return nil
}

// ValidateChunkSequence validates the chunks of a document as a whole:
// indexes must run 0..n-1 without gaps, and character offsets must lie
// within the bounds of the document text. Chunks with time-based offsets
// are exempt from the bounds check since their offsets are timestamps.
func ValidateChunkSequence(doc *Document, chunks []*Chunk) error {
	textLen := int64(utf8.RuneCountInString(doc.Content))

	for i, chunk := range chunks {
		if err := ValidateChunk(chunk); err != nil {
			return err
		}

		if chunk.Index != i {
			return fmt.Errorf("%w: index %d at position %d", ErrChunkIndexGap, chunk.Index, i)
		}

		if chunk.DocumentId != doc.Id {
			return fmt.Errorf("%w: chunk %d references document %d", ErrInvalidChunk, chunk.Index, chunk.DocumentId)
		}

		if chunk.TimeOffsets {
			continue
		}

		if chunk.StartOffset < 0 || chunk.EndOffset > textLen {
			return fmt.Errorf("%w: chunk %d spans [%d,%d) of %d",
				ErrOffsetOutOfBounds, chunk.Index, chunk.StartOffset, chunk.EndOffset, textLen)
		}
	}

	return nil
}

// ValidateEntity validates an Entity according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - Type must not be empty
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if entity.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidEntity)
	}

	if entity.Type == "" {
		return fmt.Errorf("%w: type cannot be empty", ErrInvalidEntity)
	}

	return nil
}

// ValidateRelationship validates a Relationship according to domain rules.
//
// Validation rules:
//   - Source and Target must not be empty
//   - Type must not be empty
func ValidateRelationship(rel *Relationship) error {
	if rel == nil {
		return fmt.Errorf("%w: relationship is nil", ErrInvalidRelationship)
	}

	if rel.Source == "" || rel.Target == "" {
		return fmt.Errorf("%w: endpoints cannot be empty", ErrInvalidRelationship)
	}

	if rel.Type == "" {
		return fmt.Errorf("%w: type cannot be empty", ErrInvalidRelationship)
	}

	return nil
}

// ValidateStatus validates that a JobStatus is one of the defined values.
func ValidateStatus(status JobStatus) error {
	if status.Rank() < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	return nil
}
