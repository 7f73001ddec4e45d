package core

import (
	"errors"
	"testing"
)

func TestSourceDigest(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{name: "file path", source: "/home/user/notes.txt"},
		{name: "url", source: "https://example.com/article"},
		{name: "empty string", source: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if SourceDigest(tt.source) != SourceDigest(tt.source) {
				t.Errorf("SourceDigest() produced different digests for %q", tt.source)
			}
		})
	}
}

func TestSourceDigest_Different(t *testing.T) {
	if SourceDigest("note:alpha") == SourceDigest("note:beta") {
		t.Errorf("SourceDigest() produced same digest for different sources")
	}
}

func TestRole_String(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "user"},
		{RoleAssistant, "assistant"},
		{RoleNote, "note"},
		{RoleDocument, "document"},
		{Role(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.role.String(); got != tt.want {
				t.Errorf("Role.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Document ")
	if err != nil {
		t.Fatalf("ParseRole() unexpected error: %v", err)
	}
	if role != RoleDocument {
		t.Errorf("ParseRole() = %v, want %v", role, RoleDocument)
	}

	if _, err := ParseRole("system"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("ParseRole(system) error = %v, want %v", err, ErrInvalidRole)
	}
}

func TestIngestSummary_Complete(t *testing.T) {
	if !(IngestSummary{ChunkCount: 3, TotalCount: 3}).Complete() {
		t.Error("expected complete summary")
	}
	if (IngestSummary{ChunkCount: 1, TotalCount: 3}).Complete() {
		t.Error("expected incomplete summary")
	}
}

func TestDimensionMismatchError(t *testing.T) {
	err := error(&DimensionMismatchError{RecordID: 7, Got: 768, Want: 384})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("errors.Is(%v, ErrDimensionMismatch) = false", err)
	}

	var dm *DimensionMismatchError
	if !errors.As(err, &dm) || dm.RecordID != 7 {
		t.Errorf("errors.As() failed to recover record id")
	}
}

func TestPartialIngestionError(t *testing.T) {
	cause := errors.New("embedder timeout")
	err := error(&PartialIngestionError{
		Summary: IngestSummary{Source: "doc.txt", ChunkCount: 2, TotalCount: 3},
		Cause:   cause,
	})

	if !errors.Is(err, ErrPartialIngestion) {
		t.Errorf("errors.Is(%v, ErrPartialIngestion) = false", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(%v, cause) = false", err)
	}
}
