package agent

import (
	"regexp"
	"strings"
)

var saveNotePattern = regexp.MustCompile(`(?is)\[SAVE_NOTE:\s*([^\]]+)\](.*?)\[/SAVE_NOTE\]`)

// NoteDirective is a note the model asked to save.
type NoteDirective struct {
	Project string
	Content string
}

// ExtractNotes finds every SAVE_NOTE directive in reply and returns the
// reply with the directives removed. Directives with blank content are
// dropped.
func ExtractNotes(reply string) (string, []NoteDirective) {
	matches := saveNotePattern.FindAllStringSubmatch(reply, -1)
	if len(matches) == 0 {
		return reply, nil
	}

	notes := make([]NoteDirective, 0, len(matches))
	for _, m := range matches {
		content := strings.TrimSpace(m[2])
		if content == "" {
			continue
		}
		notes = append(notes, NoteDirective{Project: strings.TrimSpace(m[1]), Content: content})
	}
	return strings.TrimSpace(saveNotePattern.ReplaceAllString(reply, "")), notes
}
