package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name: "valid document",
			doc: &Document{
				Id:      1,
				Title:   "Notes",
				Content: "Hello world",
				Source:  "/data/notes.txt",
			},
			wantErr: nil,
		},
		{
			name: "valid document with empty content",
			doc: &Document{
				Id:     1,
				Source: "/data/empty.txt",
			},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name: "missing id",
			doc: &Document{
				Id:     0,
				Source: "/data/notes.txt",
			},
			wantErr: ErrInvalidDocument,
		},
		{
			name: "empty source",
			doc: &Document{
				Id:     1,
				Source: "",
			},
			wantErr: ErrEmptySource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateDocument() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunk(t *testing.T) {
	tests := []struct {
		name    string
		chunk   *Chunk
		wantErr error
	}{
		{
			name: "valid chunk",
			chunk: &Chunk{
				Id:          1,
				DocumentId:  2,
				Index:       0,
				StartOffset: 0,
				EndOffset:   11,
				Content:     "Hello world",
			},
			wantErr: nil,
		},
		{
			name: "valid chunk without embedding",
			chunk: &Chunk{
				Id:         1,
				DocumentId: 2,
				Index:      3,
				EndOffset:  5,
				Content:    "hello",
				Embedding:  nil,
			},
			wantErr: nil,
		},
		{
			name:    "nil chunk",
			chunk:   nil,
			wantErr: ErrInvalidChunk,
		},
		{
			name: "missing document id",
			chunk: &Chunk{
				Id:      1,
				Index:   0,
				Content: "hello",
			},
			wantErr: ErrInvalidChunk,
		},
		{
			name: "negative index",
			chunk: &Chunk{
				Id:         1,
				DocumentId: 2,
				Index:      -1,
				Content:    "hello",
			},
			wantErr: ErrInvalidChunk,
		},
		{
			name: "empty content",
			chunk: &Chunk{
				Id:         1,
				DocumentId: 2,
				Index:      0,
				Content:    "",
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "end before start",
			chunk: &Chunk{
				Id:          1,
				DocumentId:  2,
				Index:       0,
				StartOffset: 10,
				EndOffset:   5,
				Content:     "hello",
			},
			wantErr: ErrInvalidChunk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunk() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateChunk() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunkSequence(t *testing.T) {
	doc := &Document{
		Id:      1,
		Source:  "/data/notes.txt",
		Content: strings.Repeat("a", 100),
	}

	valid := []*Chunk{
		{Id: 10, DocumentId: 1, Index: 0, StartOffset: 0, EndOffset: 60, Content: strings.Repeat("a", 60)},
		{Id: 11, DocumentId: 1, Index: 1, StartOffset: 40, EndOffset: 100, Content: strings.Repeat("a", 60)},
	}

	if err := ValidateChunkSequence(doc, valid); err != nil {
		t.Fatalf("ValidateChunkSequence() error = %v, want nil", err)
	}

	t.Run("index gap", func(t *testing.T) {
		gapped := []*Chunk{
			{Id: 10, DocumentId: 1, Index: 0, EndOffset: 60, Content: "x"},
			{Id: 11, DocumentId: 1, Index: 2, EndOffset: 100, Content: "y"},
		}
		err := ValidateChunkSequence(doc, gapped)
		if !errors.Is(err, ErrChunkIndexGap) {
			t.Errorf("error = %v, want %v", err, ErrChunkIndexGap)
		}
	})

	t.Run("first index nonzero", func(t *testing.T) {
		shifted := []*Chunk{
			{Id: 10, DocumentId: 1, Index: 1, EndOffset: 60, Content: "x"},
		}
		err := ValidateChunkSequence(doc, shifted)
		if !errors.Is(err, ErrChunkIndexGap) {
			t.Errorf("error = %v, want %v", err, ErrChunkIndexGap)
		}
	})

	t.Run("offsets past end of text", func(t *testing.T) {
		oob := []*Chunk{
			{Id: 10, DocumentId: 1, Index: 0, StartOffset: 0, EndOffset: 500, Content: "x"},
		}
		err := ValidateChunkSequence(doc, oob)
		if !errors.Is(err, ErrOffsetOutOfBounds) {
			t.Errorf("error = %v, want %v", err, ErrOffsetOutOfBounds)
		}
	})

	t.Run("time offsets skip bounds check", func(t *testing.T) {
		timed := []*Chunk{
			{Id: 10, DocumentId: 1, Index: 0, StartOffset: 0, EndOffset: 90000, TimeOffsets: true, Content: "x"},
		}
		if err := ValidateChunkSequence(doc, timed); err != nil {
			t.Errorf("error = %v, want nil", err)
		}
	})

	t.Run("foreign document id", func(t *testing.T) {
		foreign := []*Chunk{
			{Id: 10, DocumentId: 99, Index: 0, EndOffset: 10, Content: "x"},
		}
		err := ValidateChunkSequence(doc, foreign)
		if !errors.Is(err, ErrInvalidChunk) {
			t.Errorf("error = %v, want %v", err, ErrInvalidChunk)
		}
	})
}

func TestValidateEntity(t *testing.T) {
	tests := []struct {
		name    string
		entity  *Entity
		wantErr error
	}{
		{
			name:    "valid entity",
			entity:  &Entity{Name: "Redis", Type: "TECHNOLOGY"},
			wantErr: nil,
		},
		{
			name:    "nil entity",
			entity:  nil,
			wantErr: ErrInvalidEntity,
		},
		{
			name:    "empty name",
			entity:  &Entity{Name: "", Type: "TECHNOLOGY"},
			wantErr: ErrInvalidEntity,
		},
		{
			name:    "empty type",
			entity:  &Entity{Name: "Redis", Type: ""},
			wantErr: ErrInvalidEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntity(tt.entity)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEntity() error = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEntity() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRelationship(t *testing.T) {
	tests := []struct {
		name    string
		rel     *Relationship
		wantErr error
	}{
		{
			name:    "valid relationship",
			rel:     &Relationship{Source: "Go", Target: "Docker", Type: "USES"},
			wantErr: nil,
		},
		{
			name:    "nil relationship",
			rel:     nil,
			wantErr: ErrInvalidRelationship,
		},
		{
			name:    "missing source",
			rel:     &Relationship{Source: "", Target: "Docker", Type: "USES"},
			wantErr: ErrInvalidRelationship,
		},
		{
			name:    "missing target",
			rel:     &Relationship{Source: "Go", Target: "", Type: "USES"},
			wantErr: ErrInvalidRelationship,
		},
		{
			name:    "missing type",
			rel:     &Relationship{Source: "Go", Target: "Docker", Type: ""},
			wantErr: ErrInvalidRelationship,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRelationship(tt.rel)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRelationship() error = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRelationship() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStatus(t *testing.T) {
	for _, status := range []JobStatus{
		StatusQueued, StatusProcessing, StatusChunking, StatusEmbedding,
		StatusStoring, StatusCompleted, StatusFailed, StatusPartial,
	} {
		if err := ValidateStatus(status); err != nil {
			t.Errorf("ValidateStatus(%s) error = %v, want nil", status, err)
		}
	}

	if err := ValidateStatus(JobStatus("resumed")); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("ValidateStatus() error = %v, want %v", err, ErrUnknownStatus)
	}
}
