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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidRelationship indicates a Relationship failed validation.
	ErrInvalidRelationship = errors.New("invalid relationship")

	// ErrEmptyContent indicates a required content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptySource indicates the document Source field is empty.
	ErrEmptySource = errors.New("source cannot be empty")

	// ErrChunkIndexGap indicates the chunk index sequence has a gap
	// or does not start at zero.
	ErrChunkIndexGap = errors.New("chunk index sequence has a gap")

	// ErrOffsetOutOfBounds indicates chunk offsets exceed the bounds
	// of the document text.
	ErrOffsetOutOfBounds = errors.New("chunk offsets out of document bounds")

	// ErrUnknownStatus indicates a JobStatus outside the defined sequence.
	ErrUnknownStatus = errors.New("unknown job status")
)
