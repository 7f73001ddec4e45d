package storage

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/mnemo/core"
)

// Mode selects which candidate rows a search needs.
type Mode int

const (
	// ModeVector yields records carrying an embedding, with vectors loaded.
	ModeVector Mode = iota + 1
	// ModeLexical yields every record, content only.
	ModeLexical
)

func (m Mode) String() string {
	switch m {
	case ModeVector:
		return "vector"
	case ModeLexical:
		return "lexical"
	default:
		return "unknown"
	}
}

// Filter narrows a candidate scan. Zero fields match anything.
type Filter struct {
	Role   core.Role
	Source string
}

// Matches reports whether record passes the filter.
func (f Filter) Matches(record *core.MemoryRecord) bool {
	if f.Role != 0 && record.Role != f.Role {
		return false
	}
	if f.Source != "" && record.Source != f.Source {
		return false
	}
	return true
}

// SourceCount summarizes records sharing a source.
type SourceCount struct {
	Source   string
	Count    int
	Latest   time.Time
	LatestID core.ID
}

// Stats reports table sizes.
type Stats struct {
	Memories int
	Vectors  int
	Turns    int
}

// EmbedderInfo identifies the embedder a database was last opened with.
type EmbedderInfo struct {
	Name       string    `json:"name"`
	Dimensions int       `json:"dimensions"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store is the durable, append-only home of memories and conversation turns.
// Implementations must be thread-safe: writes are serialized, reads run
// concurrently and observe every write that completed before they started.
type Store interface {
	// Insert writes a memory and its embedding in one transaction.
	// ID and Timestamp are assigned by the store and set on the returned record.
	// Identical content is stored again under a new id.
	Insert(ctx context.Context, record *core.MemoryRecord) (*core.MemoryRecord, error)

	// InsertTurn writes a conversation turn in one transaction.
	InsertTurn(ctx context.Context, turn *core.ConversationTurn) (*core.ConversationTurn, error)

	// FetchRecent returns at most n turns in chronological order, ending
	// with the newest. An empty store yields an empty slice.
	FetchRecent(ctx context.Context, n int) ([]*core.ConversationTurn, error)

	// Candidates returns the raw rows a search mode needs.
	Candidates(ctx context.Context, mode Mode, filter Filter) ([]*core.MemoryRecord, error)

	// Get retrieves a single memory by ID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, id core.ID) (*core.MemoryRecord, error)

	// BySource returns memories with the given source and role, newest first.
	BySource(ctx context.Context, source string, role core.Role) ([]*core.MemoryRecord, error)

	// Sources lists distinct sources for a role with counts, most recently
	// active first.
	Sources(ctx context.Context, role core.Role) ([]SourceCount, error)

	// Stats reports table sizes.
	Stats(ctx context.Context) (Stats, error)

	// RecordEmbedder saves the active embedder and returns the previous one.
	// The zero EmbedderInfo means none was recorded.
	RecordEmbedder(ctx context.Context, info EmbedderInfo) (EmbedderInfo, error)

	// Close releases the store.
	Close() error
}

// SortSourceCounts orders aggregated counts by most recent activity.
func SortSourceCounts(counts map[string]*SourceCount) []SourceCount {
	out := make([]SourceCount, 0, len(counts))
	for _, sc := range counts {
		out = append(out, *sc)
	}
	slices.SortFunc(out, func(a, b SourceCount) int {
		if c := b.Latest.Compare(a.Latest); c != 0 {
			return c
		}
		if a.LatestID != b.LatestID {
			if a.LatestID > b.LatestID {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Source, b.Source)
	})
	return out
}
