package storage

import (
	"testing"
	"time"

	"github.com/poiesic/mnemo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	for _, id := range []core.ID{1, 42, 1 << 40} {
		got, err := UnmarshalID(MarshalID(id))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncatedData)
}

func TestMemoryRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 8000, time.UTC)
	tests := []struct {
		name   string
		record *core.MemoryRecord
	}{
		{
			name: "note with embedder",
			record: &core.MemoryRecord{
				Content:      "I enjoy coffee",
				Role:         core.RoleNote,
				Source:       "note:general",
				Timestamp:    ts,
				Embedding:    []float32{1, 2, 3},
				EmbedderName: "mock",
			},
		},
		{
			name:   "document without source",
			record: &core.MemoryRecord{Content: "chunk", Role: core.RoleDocument, Timestamp: ts},
		},
		{
			name:   "unicode content",
			record: &core.MemoryRecord{Content: "caf\u00e9 \u2615 na\u00efve", Role: core.RoleUser, Source: "chat", Timestamp: ts},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalMemory(9, MarshalMemory(tt.record))
			require.NoError(t, err)
			assert.Equal(t, core.ID(9), got.ID)
			assert.Equal(t, tt.record.Content, got.Content)
			assert.Equal(t, tt.record.Role, got.Role)
			assert.Equal(t, tt.record.Source, got.Source)
			assert.True(t, ts.Equal(got.Timestamp))
			assert.Equal(t, tt.record.EmbedderName, got.EmbedderName)
			assert.Nil(t, got.Embedding, "vectors are stored separately")
		})
	}
}

func TestUnmarshalMemory_Invalid(t *testing.T) {
	valid := MarshalMemory(&core.MemoryRecord{Content: "x", Role: core.RoleNote, Timestamp: time.Unix(1, 0)})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"trailing bytes", append(append([]byte{}, valid...), 0x01)},
		{"truncated", valid[:len(valid)-3]},
		{"unknown role", MarshalMemory(&core.MemoryRecord{Content: "x", Role: core.Role(42)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalMemory(1, tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestTurnRoundTrip(t *testing.T) {
	turn := &core.ConversationTurn{Role: core.RoleAssistant, Content: "hello", Timestamp: time.Unix(100, 0).UTC()}

	got, err := UnmarshalTurn(3, MarshalTurn(turn))
	require.NoError(t, err)

	assert.Equal(t, core.ID(3), got.ID)
	assert.Equal(t, core.RoleAssistant, got.Role)
	assert.Equal(t, "hello", got.Content)
	assert.True(t, turn.Timestamp.Equal(got.Timestamp))

	_, err = UnmarshalTurn(3, MarshalTurn(turn)[:4])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestEmbedderInfoRoundTrip(t *testing.T) {
	info := EmbedderInfo{Name: "openai:nomic@768", Dimensions: 768, RecordedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}

	got, err := UnmarshalEmbedderInfo(MarshalEmbedderInfo(info))
	require.NoError(t, err)
	assert.Equal(t, info.Name, got.Name)
	assert.Equal(t, info.Dimensions, got.Dimensions)
	assert.True(t, info.RecordedAt.Equal(got.RecordedAt))

	_, err = UnmarshalEmbedderInfo([]byte{0x02, 'a'})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.0e-7, 0}
	data := EncodeVector(vec)
	assert.Len(t, data, 16)

	got, err := DecodeVector(data)
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = DecodeVector(data[:7])
	assert.ErrorIs(t, err, ErrTruncatedData)
}

func TestNextTimestamp(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour)
	assert.Equal(t, future, NextTimestamp(future))

	past := time.Now().UTC().Add(-time.Hour)
	got := NextTimestamp(past)
	assert.True(t, got.After(past))
	assert.Equal(t, got, got.Truncate(time.Microsecond))
}

func TestFilter_Matches(t *testing.T) {
	note := &core.MemoryRecord{Role: core.RoleNote, Source: "note:alpha"}
	doc := &core.MemoryRecord{Role: core.RoleDocument, Source: "a.txt"}

	assert.True(t, Filter{}.Matches(note))
	assert.True(t, Filter{Role: core.RoleNote}.Matches(note))
	assert.False(t, Filter{Role: core.RoleNote}.Matches(doc))
	assert.True(t, Filter{Role: core.RoleNote, Source: "note:alpha"}.Matches(note))
	assert.False(t, Filter{Source: "note:beta"}.Matches(note))
}
