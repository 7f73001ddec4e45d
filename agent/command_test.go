package agent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/poiesic/mnemo/core"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"help", Command{Kind: KindHelp}},
		{"?", Command{Kind: KindHelp}},
		{" NOTES ", Command{Kind: KindNotes}},
		{"stats", Command{Kind: KindStats}},
		{"recent", Command{Kind: KindRecent, N: RecentN}},
		{"recent 3", Command{Kind: KindRecent, N: 3}},
		{"recent x", Command{Kind: KindUsage, Text: recentUsage}},
		{"recent 0", Command{Kind: KindUsage, Text: recentUsage}},
		{"note: Book | The Lighthouse", Command{Kind: KindNote, Project: "Book", Text: "The Lighthouse"}},
		{"Note: just an idea", Command{Kind: KindNote, Project: DefaultProject, Text: "just an idea"}},
		{"note: | orphan idea", Command{Kind: KindNote, Project: DefaultProject, Text: "orphan idea"}},
		{"note: book |", Command{Kind: KindUsage, Text: noteUsage}},
		{"note:", Command{Kind: KindUsage, Text: noteUsage}},
		{"recall: book", Command{Kind: KindRecall, Project: "book"}},
		{"recall: book | storms", Command{Kind: KindRecall, Project: "book", Text: "storms"}},
		{"recall:", Command{Kind: KindUsage, Text: recallUsage}},
		{"search: Coffee beans", Command{Kind: KindSearch, Text: "Coffee beans", N: SearchK}},
		{"search:  ", Command{Kind: KindUsage, Text: searchUsage}},
		{"ingest: docs/**/*.md", Command{Kind: KindIngest, Text: "docs/**/*.md"}},
		{"ingest:", Command{Kind: KindUsage, Text: ingestUsage}},
		{"https://example.com/a.txt", Command{Kind: KindIngest, Text: "https://example.com/a.txt"}},
		{"https://example.com is down?", Command{Kind: KindChat, Text: "https://example.com is down?"}},
		{"recently I went hiking", Command{Kind: KindChat, Text: "recently I went hiking"}},
		{"tell me a joke", Command{Kind: KindChat, Text: "tell me a joke"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.line))
		})
	}
}

func TestExtractNotes(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantText  string
		wantNotes []NoteDirective
	}{
		{
			name:     "none",
			reply:    "plain reply",
			wantText: "plain reply",
		},
		{
			name:      "single",
			reply:     "Saved. [SAVE_NOTE: book]idea one[/SAVE_NOTE]",
			wantText:  "Saved.",
			wantNotes: []NoteDirective{{Project: "book", Content: "idea one"}},
		},
		{
			name:     "multiple and case-insensitive",
			reply:    "[save_note: a]first\nline[/save_note]ok[SAVE_NOTE:b] second [/SAVE_NOTE]",
			wantText: "ok",
			wantNotes: []NoteDirective{
				{Project: "a", Content: "first\nline"},
				{Project: "b", Content: "second"},
			},
		},
		{
			name:      "blank content dropped",
			reply:     "hi [SAVE_NOTE: x]  [/SAVE_NOTE]",
			wantText:  "hi",
			wantNotes: []NoteDirective{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, notes := ExtractNotes(tt.reply)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantNotes, notes)
		})
	}
}

func TestNoteSource(t *testing.T) {
	assert.Equal(t, "note:book", NoteSource(" Book "))
	assert.Equal(t, "note:general", NoteSource(""))
}

func TestFormatIngest(t *testing.T) {
	complete := core.IngestSummary{Source: "a.txt", ChunkCount: 3, TotalCount: 3}
	partial := core.IngestSummary{Source: "b.txt", ChunkCount: 1, TotalCount: 3}

	assert.Equal(t, "Stored 3 chunk(s) from: a.txt", FormatIngest([]core.IngestSummary{complete}, nil))

	cause := errors.New("model crashed")
	err := &core.PartialIngestionError{Summary: partial, Cause: cause}
	assert.Equal(t, "Stored 1 of 3 chunk(s) from: b.txt\nError: model crashed",
		FormatIngest([]core.IngestSummary{partial}, err))

	joined := errors.Join(fmt.Errorf("b.txt: %w", err))
	out := FormatIngest([]core.IngestSummary{complete, partial}, joined)
	assert.Contains(t, out, "Stored 3 chunk(s) from: a.txt")
	assert.Contains(t, out, "Errors: b.txt:")
}
