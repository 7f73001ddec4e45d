package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored records.
// IDs come from store sequences and are never reused.
type ID uint64

// SourceDigest hashes a source label into a fixed-width key using BLAKE2b.
// Identical sources always produce identical digests.
func SourceDigest(source string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(source))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum)
}

// Role identifies who or what produced a record.
type Role int

const (
	// RoleUser is text typed by the human.
	RoleUser Role = iota + 1
	// RoleAssistant is text produced by the model.
	RoleAssistant
	// RoleNote is an explicitly saved note.
	RoleNote
	// RoleDocument is a chunk of an ingested document.
	RoleDocument
)

var roleNames = map[Role]string{
	RoleUser:      "user",
	RoleAssistant: "assistant",
	RoleNote:      "note",
	RoleDocument:  "document",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole converts a role name into a Role.
func ParseRole(name string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for role, n := range roleNames {
		if n == name {
			return role, nil
		}
	}
	return 0, ErrInvalidRole
}

// MemoryRecord is an immutable unit of remembered text.
// Embedding is nil when no embedder was active at write time.
type MemoryRecord struct {
	ID        ID
	Content   string
	Role      Role
	Source    string
	Timestamp time.Time // assigned by the store at insertion
	Embedding []float32
	// EmbedderName identifies the embedder that produced Embedding.
	EmbedderName string
}

// HasEmbedding reports whether the record carries a vector.
func (m *MemoryRecord) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// ConversationTurn is one side of a chat exchange.
type ConversationTurn struct {
	ID        ID
	Role      Role
	Content   string
	Timestamp time.Time // assigned by the store at insertion
}

// SearchResult pairs a record with its relevance score.
// For vector search Score is cosine similarity; for lexical search it is the
// number of query-term occurrences.
type SearchResult struct {
	Record *MemoryRecord
	Score  float32
}

// IngestSummary reports the outcome of ingesting one document.
type IngestSummary struct {
	IngestID   string
	Source     string
	ChunkCount int // chunks stored
	TotalCount int // chunks produced by the chunker
}

// Complete reports whether every chunk was stored.
func (s IngestSummary) Complete() bool {
	return s.ChunkCount == s.TotalCount
}
