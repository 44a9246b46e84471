package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "test content",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "This is a much longer piece of content that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestEntity_Key(t *testing.T) {
	tests := []struct {
		name   string
		entity Entity
		want   string
	}{
		{
			name: "basic entity",
			entity: Entity{
				Name: "PostgreSQL",
				Type: "TECHNOLOGY",
			},
			want: "(TECHNOLOGY,postgresql)",
		},
		{
			name: "mixed case name is lowercased",
			entity: Entity{
				Name: "Ada Lovelace",
				Type: "PERSON",
			},
			want: "(PERSON,ada lovelace)",
		},
		{
			name: "empty entity",
			entity: Entity{
				Name: "",
				Type: "",
			},
			want: "(,)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.entity.Key()
			if got != tt.want {
				t.Errorf("Entity.Key() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntity_Key_CaseInsensitiveIdentity(t *testing.T) {
	a := Entity{Name: "Docker", Type: "TECHNOLOGY"}
	b := Entity{Name: "docker", Type: "TECHNOLOGY"}

	if a.Key() != b.Key() {
		t.Errorf("Entity.Key() should be case-insensitive over the name: %q vs %q", a.Key(), b.Key())
	}
}

func TestJobStatus_Rank(t *testing.T) {
	sequence := []JobStatus{
		StatusQueued,
		StatusProcessing,
		StatusChunking,
		StatusEmbedding,
		StatusStoring,
	}

	for i := 1; i < len(sequence); i++ {
		if sequence[i].Rank() <= sequence[i-1].Rank() {
			t.Errorf("status %s should rank above %s", sequence[i], sequence[i-1])
		}
	}

	for _, terminal := range []JobStatus{StatusCompleted, StatusFailed, StatusPartial} {
		if terminal.Rank() <= StatusStoring.Rank() {
			t.Errorf("terminal status %s should rank above storing", terminal)
		}
	}

	if JobStatus("bogus").Rank() >= 0 {
		t.Error("unknown status should rank below queued")
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusChunking, false},
		{StatusEmbedding, false},
		{StatusStoring, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusPartial, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}
