package assembler

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/mnemo/core"
)

const (
	// DefaultSnippetChars caps the content shown per memory.
	DefaultSnippetChars = 300

	timestampLayout = "2006-01-02 15:04"
)

// Snippet renders a record as "[<time> [<source>]] <content>" with content
// cut to at most limit runes.
func Snippet(record *core.MemoryRecord, limit int) string {
	header := record.Timestamp.Format(timestampLayout)
	if record.Source != "" {
		header += " [" + record.Source + "]"
	}
	return fmt.Sprintf("[%s] %s", header, truncate(record.Content, limit))
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// Ago describes t relative to now: "just now", "5m ago", "3h ago", "2d ago",
// or the date once more than 30 days have passed.
func Ago(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d <= 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	default:
		return t.Format("2006-01-02")
	}
}

func renderTurn(turn *core.ConversationTurn) string {
	return turn.Role.String() + ": " + turn.Content
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
