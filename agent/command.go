package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/ingestion"
)

// Kind identifies a parsed input line.
type Kind int

const (
	// KindChat sends the line to the model.
	KindChat Kind = iota
	KindHelp
	KindNotes
	KindNote
	KindRecall
	KindSearch
	KindIngest
	KindRecent
	KindStats
	// KindUsage reports a malformed command; Text holds the usage line.
	KindUsage
)

// Command is one parsed input line.
type Command struct {
	Kind    Kind
	Project string
	Text    string
	N       int
}

const (
	// SearchK is the number of results shown by the search command.
	SearchK = 5
	// RecallK bounds themed recall.
	RecallK = 10
	// RecentN is the default count for the recent command.
	RecentN = 15

	noteUsage   = "Usage: note: <project> | <idea>  or  note: <idea>"
	recallUsage = "Usage: recall: <project>  or  recall: <project> | <theme>"
	searchUsage = "Usage: search: <topic>"
	ingestUsage = "Usage: ingest: <path, glob or url>"
	recentUsage = "Usage: recent [n]"
)

// ParseCommand classifies an input line. Command words are matched
// case-insensitively; arguments keep their case.
func ParseCommand(line string) Command {
	text := strings.TrimSpace(line)
	lower := strings.ToLower(text)

	arg := func(prefix string) string {
		return strings.TrimSpace(text[len(prefix):])
	}

	switch {
	case lower == "help" || lower == "?":
		return Command{Kind: KindHelp}
	case lower == "notes":
		return Command{Kind: KindNotes}
	case lower == "stats":
		return Command{Kind: KindStats}
	case lower == "recent" || strings.HasPrefix(lower, "recent "):
		n := RecentN
		if rest := arg("recent"); rest != "" {
			v, err := strconv.Atoi(rest)
			if err != nil || v <= 0 {
				return Command{Kind: KindUsage, Text: recentUsage}
			}
			n = v
		}
		return Command{Kind: KindRecent, N: n}
	case strings.HasPrefix(lower, "note:"):
		body := arg("note:")
		project, idea := DefaultProject, body
		if strings.Contains(body, "|") {
			project, idea = splitPipe(body)
		}
		if idea == "" {
			return Command{Kind: KindUsage, Text: noteUsage}
		}
		if project == "" {
			project = DefaultProject
		}
		return Command{Kind: KindNote, Project: project, Text: idea}
	case strings.HasPrefix(lower, "recall:"):
		project, theme := splitPipe(arg("recall:"))
		if project == "" {
			return Command{Kind: KindUsage, Text: recallUsage}
		}
		return Command{Kind: KindRecall, Project: project, Text: theme}
	case strings.HasPrefix(lower, "search:"):
		query := arg("search:")
		if query == "" {
			return Command{Kind: KindUsage, Text: searchUsage}
		}
		return Command{Kind: KindSearch, Text: query, N: SearchK}
	case strings.HasPrefix(lower, "ingest:"):
		target := arg("ingest:")
		if target == "" {
			return Command{Kind: KindUsage, Text: ingestUsage}
		}
		return Command{Kind: KindIngest, Text: target}
	case ingestion.IsURL(lower) && !strings.ContainsAny(text, " \t\n"):
		return Command{Kind: KindIngest, Text: text}
	default:
		return Command{Kind: KindChat, Text: text}
	}
}

// splitPipe splits "a | b" into its trimmed halves. Without a pipe the whole
// body is returned as the first half.
func splitPipe(body string) (string, string) {
	left, right, _ := strings.Cut(body, "|")
	return strings.TrimSpace(left), strings.TrimSpace(right)
}

// Handle runs one input line, a command or a chat turn, and returns the text
// to show. Degraded conditions never surface as errors; storage and model
// failures do.
func (a *Agent) Handle(ctx context.Context, line string) (string, error) {
	cmd := ParseCommand(line)
	switch cmd.Kind {
	case KindHelp:
		return HelpText, nil
	case KindUsage:
		return cmd.Text, nil
	case KindNotes:
		projects, err := a.Projects(ctx)
		if err != nil {
			return "", err
		}
		return FormatProjects(projects), nil
	case KindNote:
		if _, err := a.Note(ctx, cmd.Project, cmd.Text); err != nil {
			return "", err
		}
		return fmt.Sprintf("Note saved to '%s'.", strings.TrimPrefix(NoteSource(cmd.Project), notePrefix)), nil
	case KindRecall:
		notes, err := a.Recall(ctx, cmd.Project, cmd.Text, RecallK)
		if err != nil {
			return "", err
		}
		return FormatNotes(strings.TrimPrefix(NoteSource(cmd.Project), notePrefix), cmd.Text, notes), nil
	case KindSearch:
		results, err := a.Search(ctx, cmd.Text, cmd.N)
		if err != nil {
			return "", err
		}
		return FormatSearchResults(cmd.Text, results, a.now()), nil
	case KindIngest:
		summaries, err := a.Ingest(ctx, cmd.Text)
		if err != nil && len(summaries) == 0 {
			return "", err
		}
		return FormatIngest(summaries, err), nil
	case KindRecent:
		turns, err := a.Recent(ctx, cmd.N)
		if err != nil {
			return "", err
		}
		return FormatTurns(turns, a.now()), nil
	case KindStats:
		status, err := a.Status(ctx)
		if err != nil {
			return "", err
		}
		return FormatStatus(status), nil
	default:
		reply, err := a.Respond(ctx, cmd.Text)
		if err != nil {
			return "", err
		}
		return FormatReply(reply), nil
	}
}

// FormatReply appends a confirmation for each saved note.
func FormatReply(reply *Reply) string {
	var sb strings.Builder
	sb.WriteString(reply.Text)
	for _, note := range reply.Notes {
		fmt.Fprintf(&sb, "\n\n(Note saved to '%s')", strings.TrimPrefix(note.Source, notePrefix))
	}
	return strings.TrimSpace(sb.String())
}

// FormatIngest summarizes an ingestion run.
func FormatIngest(summaries []core.IngestSummary, err error) string {
	lines := make([]string, 0, len(summaries)+1)
	for _, s := range summaries {
		switch {
		case s.TotalCount == 0:
			lines = append(lines, fmt.Sprintf("Nothing stored from: %s", s.Source))
		case s.Complete():
			lines = append(lines, fmt.Sprintf("Stored %d chunk(s) from: %s", s.ChunkCount, s.Source))
		default:
			lines = append(lines, fmt.Sprintf("Stored %d of %d chunk(s) from: %s", s.ChunkCount, s.TotalCount, s.Source))
		}
	}
	if err != nil {
		var pie *core.PartialIngestionError
		if !errors.As(err, &pie) || len(summaries) > 1 {
			lines = append(lines, "Errors: "+err.Error())
		} else {
			lines = append(lines, "Error: "+pie.Cause.Error())
		}
	}
	return strings.Join(lines, "\n")
}

// HelpText lists the commands understood by Handle.
const HelpText = `Commands
  help / ?                      Show this help message
  notes                         List note projects with counts
  note: <project> | <idea>      Save an idea to a project
  note: <idea>                  Save an idea to 'general'
  recall: <project>             List all notes for a project
  recall: <project> | <theme>   Search a project's notes by theme
  search: <query>               Search all memories
  ingest: <path, glob or url>   Store a text document
  <url>                         Same as ingest:
  recent [n]                    Show the last n conversation turns
  stats                         Show memory counts and the active embedder

Anything else is sent to the model.`
