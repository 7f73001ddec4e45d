// Package storetest holds behavior tests shared by every storage.Store
// implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) storage.Store

// Run exercises the storage.Store contract against stores made by factory.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"InsertAssignsIDAndTimestamp", testInsertAssigns},
		{"InsertRejectsInvalid", testInsertRejectsInvalid},
		{"NoDeduplication", testNoDeduplication},
		{"TimestampsNonDecreasing", testTimestampsNonDecreasing},
		{"FetchRecentEmpty", testFetchRecentEmpty},
		{"FetchRecentBoundedChronological", testFetchRecentBounded},
		{"FetchRecentIsolatedFromLaterWrites", testFetchRecentIsolated},
		{"CandidatesByMode", testCandidatesByMode},
		{"CandidatesFiltered", testCandidatesFiltered},
		{"BySourceNewestFirst", testBySource},
		{"Sources", testSources},
		{"GetNotFound", testGetNotFound},
		{"Stats", testStats},
		{"RecordEmbedder", testRecordEmbedder},
		{"ConcurrentWritersAndReaders", testConcurrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, factory(t))
		})
	}
}

func note(content, project string) *core.MemoryRecord {
	return &core.MemoryRecord{Content: content, Role: core.RoleNote, Source: "note:" + project}
}

func testInsertAssigns(t *testing.T, s storage.Store) {
	ctx := context.Background()
	in := note("I like tea", "general")
	in.Embedding = []float32{1, 0, 0}
	in.EmbedderName = "mock"

	got, err := s.Insert(ctx, in)
	require.NoError(t, err)
	assert.NotZero(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Zero(t, in.ID, "caller's record is not mutated")

	fetched, err := s.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "I like tea", fetched.Content)
	assert.Equal(t, core.RoleNote, fetched.Role)
	assert.Equal(t, "note:general", fetched.Source)
	assert.Equal(t, []float32{1, 0, 0}, fetched.Embedding)
	assert.Equal(t, "mock", fetched.EmbedderName)
	assert.True(t, got.Timestamp.Equal(fetched.Timestamp))
}

func testInsertRejectsInvalid(t *testing.T, s storage.Store) {
	ctx := context.Background()

	_, err := s.Insert(ctx, &core.MemoryRecord{Content: "  ", Role: core.RoleNote})
	assert.ErrorIs(t, err, core.ErrEmptyContent)

	_, err = s.InsertTurn(ctx, &core.ConversationTurn{Content: "x", Role: core.RoleDocument})
	assert.ErrorIs(t, err, core.ErrInvalidRole)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Memories)
	assert.Zero(t, stats.Turns)
}

func testNoDeduplication(t *testing.T, s storage.Store) {
	ctx := context.Background()

	a, err := s.Insert(ctx, note("same text", "p"))
	require.NoError(t, err)
	b, err := s.Insert(ctx, note("same text", "p"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	for _, id := range []core.ID{a.ID, b.ID} {
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "same text", got.Content)
	}
}

func testTimestampsNonDecreasing(t *testing.T, s storage.Store) {
	ctx := context.Background()

	var last core.MemoryRecord
	for i := 0; i < 20; i++ {
		got, err := s.Insert(ctx, note(fmt.Sprintf("n%d", i), "p"))
		require.NoError(t, err)
		if i > 0 {
			assert.False(t, got.Timestamp.Before(last.Timestamp))
			assert.Greater(t, got.ID, last.ID)
		}
		last = *got
	}
}

func testFetchRecentEmpty(t *testing.T, s storage.Store) {
	turns, err := s.FetchRecent(context.Background(), 15)
	require.NoError(t, err)
	assert.NotNil(t, turns)
	assert.Empty(t, turns)
}

func testFetchRecentBounded(t *testing.T, s storage.Store) {
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		_, err := s.InsertTurn(ctx, &core.ConversationTurn{Role: role, Content: fmt.Sprintf("turn %d", i)})
		require.NoError(t, err)
	}

	turns, err := s.FetchRecent(ctx, 4)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	for i, turn := range turns {
		assert.Equal(t, fmt.Sprintf("turn %d", 6+i), turn.Content)
	}
	for i := 1; i < len(turns); i++ {
		assert.False(t, turns[i].Timestamp.Before(turns[i-1].Timestamp))
	}

	all, err := s.FetchRecent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 10)
	assert.Equal(t, "turn 0", all[0].Content)

	none, err := s.FetchRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testFetchRecentIsolated(t *testing.T, s storage.Store) {
	ctx := context.Background()
	const (
		writes = 200
		n      = 5
	)

	// started is the index of the last InsertTurn begun; committed the last one returned.
	var started, committed atomic.Int64
	done := make(chan struct{})
	errs := make(chan error, 1)
	go func() {
		defer close(done)
		for i := int64(1); i <= writes; i++ {
			started.Store(i)
			if _, err := s.InsertTurn(ctx, &core.ConversationTurn{Role: core.RoleUser, Content: fmt.Sprintf("turn %d", i)}); err != nil {
				errs <- err
				return
			}
			committed.Store(i)
		}
	}()

	index := func(turn *core.ConversationTurn) int64 {
		var i int64
		_, err := fmt.Sscanf(turn.Content, "turn %d", &i)
		require.NoError(t, err)
		return i
	}

	for reading := true; reading; {
		select {
		case <-done:
			reading = false
		default:
		}

		before := committed.Load()
		begun := started.Load()
		turns, err := s.FetchRecent(ctx, n)
		require.NoError(t, err)

		require.LessOrEqual(t, len(turns), n)
		if before >= n {
			require.Len(t, turns, n)
		}
		for i, turn := range turns {
			idx := index(turn)
			require.LessOrEqual(t, idx, begun, "turn begun after the fetch started")
			if i > 0 {
				require.Equal(t, index(turns[i-1])+1, idx, "turns are the newest contiguous run")
				require.False(t, turn.Timestamp.Before(turns[i-1].Timestamp))
			}
		}
		if before > 0 {
			require.NotEmpty(t, turns)
			require.GreaterOrEqual(t, index(turns[len(turns)-1]), before, "committed turn missing")
		}
	}

	select {
	case err := <-errs:
		require.NoError(t, err)
	default:
	}
}

func testCandidatesByMode(t *testing.T, s storage.Store) {
	ctx := context.Background()

	withVec := note("vector note", "p")
	withVec.Embedding = []float32{0.5, 0.5}
	withVec.EmbedderName = "mock"
	_, err := s.Insert(ctx, withVec)
	require.NoError(t, err)
	_, err = s.Insert(ctx, note("plain note", "p"))
	require.NoError(t, err)

	vector, err := s.Candidates(ctx, storage.ModeVector, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, vector, 1)
	assert.Equal(t, "vector note", vector[0].Content)
	assert.Equal(t, []float32{0.5, 0.5}, vector[0].Embedding)

	lexical, err := s.Candidates(ctx, storage.ModeLexical, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, lexical, 2)
	assert.Equal(t, "vector note", lexical[0].Content)
	assert.Equal(t, "plain note", lexical[1].Content)

	_, err = s.Candidates(ctx, storage.Mode(0), storage.Filter{})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func testCandidatesFiltered(t *testing.T, s storage.Store) {
	ctx := context.Background()

	_, err := s.Insert(ctx, note("alpha idea", "alpha"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, note("beta idea", "beta"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, &core.MemoryRecord{Content: "doc chunk", Role: core.RoleDocument, Source: "note:alpha"})
	require.NoError(t, err)

	got, err := s.Candidates(ctx, storage.ModeLexical, storage.Filter{Role: core.RoleNote, Source: "note:alpha"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alpha idea", got[0].Content)

	docs, err := s.Candidates(ctx, storage.ModeLexical, storage.Filter{Role: core.RoleDocument})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func testBySource(t *testing.T, s storage.Store) {
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_, err := s.Insert(ctx, note(content, "alpha"))
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, note("other", "beta"))
	require.NoError(t, err)

	got, err := s.BySource(ctx, "note:alpha", core.RoleNote)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "third", got[0].Content)
	assert.Equal(t, "first", got[2].Content)

	empty, err := s.BySource(ctx, "note:missing", core.RoleNote)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func testSources(t *testing.T, s storage.Store) {
	ctx := context.Background()

	for _, n := range []*core.MemoryRecord{
		note("a1", "alpha"), note("a2", "alpha"), note("b1", "beta"),
	} {
		_, err := s.Insert(ctx, n)
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, &core.MemoryRecord{Content: "chunk", Role: core.RoleDocument, Source: "doc.txt"})
	require.NoError(t, err)

	got, err := s.Sources(ctx, core.RoleNote)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "note:beta", got[0].Source)
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, "note:alpha", got[1].Source)
	assert.Equal(t, 2, got[1].Count)
}

func testGetNotFound(t *testing.T, s storage.Store) {
	_, err := s.Get(context.Background(), 12345)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testStats(t *testing.T, s storage.Store) {
	ctx := context.Background()

	withVec := note("v", "p")
	withVec.Embedding = []float32{1}
	_, err := s.Insert(ctx, withVec)
	require.NoError(t, err)
	_, err = s.Insert(ctx, note("plain", "p"))
	require.NoError(t, err)
	_, err = s.InsertTurn(ctx, &core.ConversationTurn{Role: core.RoleUser, Content: "hi"})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Stats{Memories: 2, Vectors: 1, Turns: 1}, stats)
}

func testRecordEmbedder(t *testing.T, s storage.Store) {
	ctx := context.Background()

	prev, err := s.RecordEmbedder(ctx, storage.EmbedderInfo{Name: "mock", Dimensions: 384})
	require.NoError(t, err)
	assert.Empty(t, prev.Name)

	prev, err = s.RecordEmbedder(ctx, storage.EmbedderInfo{Name: "onnx:bge", Dimensions: 384})
	require.NoError(t, err)
	assert.Equal(t, "mock", prev.Name)
	assert.Equal(t, 384, prev.Dimensions)
	assert.False(t, prev.RecordedAt.IsZero())
}

func testConcurrent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	const writers, perWriter = 4, 10

	var wg sync.WaitGroup
	ids := make(chan core.ID, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				got, err := s.Insert(ctx, note(fmt.Sprintf("w%d-%d", w, i), "p"))
				if !assert.NoError(t, err) {
					return
				}
				ids <- got.ID

				// read-your-writes
				fetched, err := s.Get(ctx, got.ID)
				if assert.NoError(t, err) {
					assert.Equal(t, got.Content, fetched.Content)
				}
			}
		}(w)
	}
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := s.Candidates(ctx, storage.ModeLexical, storage.Filter{})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[core.ID]bool{}
	for id := range ids {
		assert.False(t, seen[id], "id %d reused", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers*perWriter)

	all, err := s.Candidates(ctx, storage.ModeLexical, storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, writers*perWriter)
}
