package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/mnemo/assembler"
	"github.com/poiesic/mnemo/core"
)

const searchContentChars = 500

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// FormatProjects lists note projects.
func FormatProjects(projects []Project) string {
	if len(projects) == 0 {
		return "No notes saved yet.\n" + noteUsage + "\nExample: note: book | The lighthouse represents isolation"
	}
	lines := []string{"Note projects:"}
	for _, p := range projects {
		lines = append(lines, fmt.Sprintf("  - %s  (%s)", p.Name, plural(p.Count, "note")))
	}
	lines = append(lines, "", "Use 'recall: <project>' to retrieve notes.")
	return strings.Join(lines, "\n")
}

// FormatNotes renders recalled notes in the order given.
func FormatNotes(project, theme string, notes []*core.MemoryRecord) string {
	if len(notes) == 0 {
		msg := fmt.Sprintf("No notes found for project '%s'.", project)
		if theme != "" {
			msg += fmt.Sprintf("\nTry 'recall: %s' without a theme to see all notes.", project)
		}
		return msg
	}

	header := "Notes: " + project
	if theme != "" {
		header += fmt.Sprintf("  (theme: %s)", theme)
	}
	lines := []string{fmt.Sprintf("%s  [%s]", header, plural(len(notes), "note")), strings.Repeat("-", 44)}
	for i, n := range notes {
		lines = append(lines, "", fmt.Sprintf("[%d] %s", i+1, n.Timestamp.Format("2006-01-02 15:04")), n.Content)
	}
	return strings.Join(lines, "\n")
}

// FormatSearchResults renders ranked memories with source and relative time.
func FormatSearchResults(query string, results []*core.SearchResult, now time.Time) string {
	if len(results) == 0 {
		return fmt.Sprintf("No memories found for: '%s'", query)
	}
	lines := []string{fmt.Sprintf("Search results for '%s':", query)}
	for i, r := range results {
		header := fmt.Sprintf("[%d] %s  role: %s", i+1, assembler.Ago(r.Record.Timestamp, now), r.Record.Role)
		if r.Record.Source != "" {
			header += "  source: " + r.Record.Source
		}
		lines = append(lines, "", header, indent(truncateRunes(r.Record.Content, searchContentChars)))
	}
	return strings.Join(lines, "\n")
}

// FormatTurns renders conversation turns oldest first.
func FormatTurns(turns []*core.ConversationTurn, now time.Time) string {
	if len(turns) == 0 {
		return "No conversation yet."
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", assembler.Ago(t.Timestamp, now), t.Role, t.Content))
	}
	return strings.Join(lines, "\n")
}

// FormatStatus renders store counts and the active embedder.
func FormatStatus(s Status) string {
	embedder := fmt.Sprintf("%s (%d dimensions)", s.Embedder, s.Dimensions)
	if s.Dimensions == 0 {
		embedder = s.Embedder + " (lexical search only)"
	}
	return strings.Join([]string{
		fmt.Sprintf("Memories:   %d", s.Memories),
		fmt.Sprintf("Embeddings: %d", s.Vectors),
		fmt.Sprintf("Turns:      %d", s.Turns),
		fmt.Sprintf("Embedder:   %s", embedder),
	}, "\n")
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
