package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/ai/mock"
	"github.com/poiesic/mnemo/ai/unavailable"
	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/storage"
	"github.com/poiesic/mnemo/storage/badger"
)

var beverageTopics = map[string]int{
	"tea": 0, "coffee": 0, "beverages": 0, "drink": 0,
	"weather": 1, "nice": 1, "rain": 1,
}

func setupStore(t *testing.T) storage.Store {
	t.Helper()
	store, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})
	return store
}

func insert(t *testing.T, store storage.Store, embedder ai.Embedder, content string, role core.Role) *core.MemoryRecord {
	t.Helper()
	ctx := context.Background()
	record := &core.MemoryRecord{Content: content, Role: role, Source: "test"}
	if ai.Available(embedder) {
		vec, err := embedder.EmbedText(ctx, content)
		require.NoError(t, err)
		record.Embedding = vec
		record.EmbedderName = embedder.Name()
	}
	stored, err := store.Insert(ctx, record)
	require.NoError(t, err)
	return stored
}

func contents(results []*core.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Record.Content
	}
	return out
}

func TestNewRetriever(t *testing.T) {
	store := setupStore(t)

	_, err := NewRetriever(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewRetriever(store, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	r, err := NewRetriever(store, unavailable.New(), WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, r.logger)
}

func TestSemanticSearch_InvalidLimit(t *testing.T) {
	r, err := NewRetriever(setupStore(t), mock.NewMockEmbedder())
	require.NoError(t, err)

	for _, k := range []int{0, -1} {
		_, err := r.SemanticSearch(context.Background(), "anything", k)
		assert.ErrorIs(t, err, ErrInvalidLimit)
	}
}

func TestSemanticSearch_VectorBeverages(t *testing.T) {
	store := setupStore(t)
	embedder := mock.NewMockEmbedder().WithTopics(beverageTopics)

	insert(t, store, embedder, "I like tea", core.RoleNote)
	insert(t, store, embedder, "I enjoy coffee", core.RoleNote)
	insert(t, store, embedder, "Weather is nice", core.RoleNote)

	r, err := NewRetriever(store, embedder)
	require.NoError(t, err)

	mon := &recordingMonitor{}
	results, err := r.SemanticSearch(context.Background(), "beverages", 3, WithMonitor(mon))
	require.NoError(t, err)
	require.Len(t, results, 3)

	top := contents(results[:2])
	assert.ElementsMatch(t, []string{"I like tea", "I enjoy coffee"}, top)
	assert.Equal(t, "Weather is nice", results[2].Record.Content)
	assert.Greater(t, results[1].Score, results[2].Score)
	assert.Equal(t, storage.ModeVector, mon.mode)

	// Equal scores: newer first.
	assert.Equal(t, "I enjoy coffee", results[0].Record.Content)
}

func TestSemanticSearch_LexicalCoffee(t *testing.T) {
	store := setupStore(t)
	embedder := unavailable.New()

	insert(t, store, embedder, "I like tea", core.RoleNote)
	insert(t, store, embedder, "I enjoy coffee", core.RoleNote)
	insert(t, store, embedder, "Weather is nice", core.RoleNote)

	r, err := NewRetriever(store, embedder)
	require.NoError(t, err)

	mon := &recordingMonitor{}
	results, err := r.SemanticSearch(context.Background(), "coffee", 5, WithMonitor(mon))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "I enjoy coffee", results[0].Record.Content)
	assert.Equal(t, float32(1), results[0].Score)
	assert.Equal(t, storage.ModeLexical, mon.mode)
}

func TestSemanticSearch_LexicalRanking(t *testing.T) {
	store := setupStore(t)
	embedder := unavailable.New()

	insert(t, store, embedder, "Coffee first thing, COFFEE again at noon", core.RoleNote)
	insert(t, store, embedder, "one coffee", core.RoleNote)
	insert(t, store, embedder, "another coffee", core.RoleNote)
	insert(t, store, embedder, "coffeehouse is not a match", core.RoleNote)

	r, err := NewRetriever(store, embedder)
	require.NoError(t, err)

	results, err := r.SemanticSearch(context.Background(), "Coffee", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Coffee first thing, COFFEE again at noon",
		"another coffee",
		"one coffee",
	}, contents(results))
}

func TestSemanticSearch_FewerThanK(t *testing.T) {
	tests := []struct {
		name     string
		embedder ai.Embedder
	}{
		{"vector", mock.NewMockEmbedder()},
		{"lexical", unavailable.New()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupStore(t)
			r, err := NewRetriever(store, tt.embedder)
			require.NoError(t, err)

			results, err := r.SemanticSearch(context.Background(), "garden", 5)
			require.NoError(t, err)
			assert.Empty(t, results)

			insert(t, store, tt.embedder, "the garden needs water", core.RoleNote)
			insert(t, store, tt.embedder, "garden party on friday", core.RoleNote)

			results, err = r.SemanticSearch(context.Background(), "garden", 5)
			require.NoError(t, err)
			assert.Len(t, results, 2)
		})
	}
}

func TestSemanticSearch_Deterministic(t *testing.T) {
	store := setupStore(t)
	embedder := mock.NewMockEmbedder()
	for _, c := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		insert(t, store, embedder, c, core.RoleNote)
	}

	r, err := NewRetriever(store, embedder)
	require.NoError(t, err)

	first, err := r.SemanticSearch(context.Background(), "alphabet", 3)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.SemanticSearch(context.Background(), "alphabet", 3)
		require.NoError(t, err)
		assert.Equal(t, contents(first), contents(again))
	}
}

func TestSemanticSearch_Scope(t *testing.T) {
	store := setupStore(t)
	embedder := unavailable.New()
	ctx := context.Background()

	for _, rec := range []*core.MemoryRecord{
		{Content: "garden plan", Role: core.RoleNote, Source: "note:home"},
		{Content: "garden notes", Role: core.RoleDocument, Source: "garden.txt"},
		{Content: "garden chat", Role: core.RoleAssistant, Source: "chat"},
	} {
		_, err := store.Insert(ctx, rec)
		require.NoError(t, err)
	}

	r, err := NewRetriever(store, embedder)
	require.NoError(t, err)

	results, err := r.SemanticSearch(ctx, "garden", 5, InScope(storage.Filter{Role: core.RoleNote}))
	require.NoError(t, err)
	assert.Equal(t, []string{"garden plan"}, contents(results))

	results, err = r.SemanticSearch(ctx, "garden", 5, InScope(storage.Filter{Source: "garden.txt"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"garden notes"}, contents(results))
}

func TestSemanticSearch_StaleEmbedderFallsBack(t *testing.T) {
	store := setupStore(t)
	old := mock.NewMockEmbedder()
	old.ModelName = "old-model"
	old.Dims = 8

	insert(t, store, old, "kayak trip in june", core.RoleNote)

	current := mock.NewMockEmbedder()
	r, err := NewRetriever(store, current)
	require.NoError(t, err)

	mon := &recordingMonitor{}
	results, err := r.SemanticSearch(context.Background(), "kayak", 5, WithMonitor(mon))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, storage.ModeLexical, mon.mode)
}

func TestSemanticSearch_DimensionMismatch(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, &core.MemoryRecord{
		Content:      "short vector",
		Role:         core.RoleNote,
		Embedding:    []float32{1, 0, 0},
		EmbedderName: "mock",
	})
	require.NoError(t, err)

	r, err := NewRetriever(store, mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = r.SemanticSearch(ctx, "short", 5)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	var dme *core.DimensionMismatchError
	require.True(t, errors.As(err, &dme))
	assert.Equal(t, 3, dme.Got)
	assert.Equal(t, 384, dme.Want)
}

func TestSemanticSearch_QueryDimensionMismatch(t *testing.T) {
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 2}, nil
	})
	r, err := NewRetriever(setupStore(t), embedder)
	require.NoError(t, err)

	_, err = r.SemanticSearch(context.Background(), "anything", 1)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestSemanticSearch_EmbedFailureDegrades(t *testing.T) {
	store := setupStore(t)
	healthy := mock.NewMockEmbedder()
	insert(t, store, healthy, "bicycle repair", core.RoleNote)

	failing := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, core.ErrProviderUnavailable
	})
	r, err := NewRetriever(store, failing)
	require.NoError(t, err)

	mon := &recordingMonitor{}
	results, err := r.SemanticSearch(context.Background(), "bicycle", 5, WithMonitor(mon))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, storage.ModeLexical, mon.mode)
}

func TestCompareResults(t *testing.T) {
	store := setupStore(t)
	embedder := unavailable.New()
	a := insert(t, store, embedder, "a", core.RoleNote)
	b := insert(t, store, embedder, "b", core.RoleNote)

	older := &core.SearchResult{Record: a, Score: 0.5}
	newer := &core.SearchResult{Record: b, Score: 0.5}
	better := &core.SearchResult{Record: a, Score: 0.9}

	assert.Positive(t, compareResults(older, newer))
	assert.Negative(t, compareResults(newer, older))
	assert.Negative(t, compareResults(better, newer))

	same := &core.SearchResult{Record: &core.MemoryRecord{ID: a.ID + 10, Timestamp: a.Timestamp}, Score: 0.5}
	assert.Negative(t, compareResults(same, older))
}

type recordingMonitor struct {
	query   string
	k       int
	mode    storage.Mode
	reason  string
	scanned int
	results []*core.SearchResult
}

func (m *recordingMonitor) Start(query string, k int) {
	m.query, m.k = query, k
}

func (m *recordingMonitor) ModeChosen(mode storage.Mode, reason string) {
	m.mode, m.reason = mode, reason
}

func (m *recordingMonitor) AfterCandidateScan(count int) {
	m.scanned = count
}

func (m *recordingMonitor) Finish(results []*core.SearchResult) {
	m.results = results
}
