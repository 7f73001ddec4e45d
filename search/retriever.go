package search

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/storage"
)

// Retriever ranks stored memories against a query.
// It holds no records between calls; every call reads the store afresh.
type Retriever struct {
	store    storage.Store
	embedder ai.Embedder
	logger   *slog.Logger

	// degradeOnce limits the runtime-failure warning to one per process.
	degradeOnce sync.Once
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "retriever")
		return nil
	}
}

// NewRetriever creates a new retriever. An unavailable embedder is accepted
// and puts every call in lexical mode.
func NewRetriever(store storage.Store, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		store:    store,
		embedder: embedder,
		logger:   slog.Default().With("component", "retriever"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// searchOptions narrows a single call.
type searchOptions struct {
	filter  storage.Filter
	monitor Monitor
}

// SearchOption configures a single SemanticSearch call.
type SearchOption func(*searchOptions)

// InScope restricts candidates to records matching filter.
func InScope(filter storage.Filter) SearchOption {
	return func(o *searchOptions) {
		o.filter = filter
	}
}

// WithMonitor attaches a monitor to the call.
func WithMonitor(m Monitor) SearchOption {
	return func(o *searchOptions) {
		if m != nil {
			o.monitor = m
		}
	}
}

// SemanticSearch returns up to k records ranked against query.
// An empty store or scope yields an empty slice. Storage failures and
// dimension mismatches are returned; a missing embedder is not an error.
func (r *Retriever) SemanticSearch(ctx context.Context, query string, k int, opts ...SearchOption) ([]*core.SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidLimit
	}
	o := searchOptions{monitor: &noopMonitor{}}
	for _, opt := range opts {
		opt(&o)
	}
	o.monitor.Start(query, k)

	results, err := r.search(ctx, query, k, o)
	if err != nil {
		return nil, err
	}
	o.monitor.Finish(results)
	return results, nil
}

func (r *Retriever) search(ctx context.Context, query string, k int, o searchOptions) ([]*core.SearchResult, error) {
	if !ai.Available(r.embedder) {
		o.monitor.ModeChosen(storage.ModeLexical, "embedder unavailable")
		return r.lexical(ctx, query, k, o)
	}

	queryVec, err := r.embedder.EmbedText(ctx, query)
	switch {
	case errors.Is(err, core.ErrDimensionMismatch):
		return nil, err
	case err != nil:
		r.degradeOnce.Do(func() {
			r.logger.Warn("query embedding failed, using lexical ranking", "err", err)
		})
		o.monitor.ModeChosen(storage.ModeLexical, "query embedding failed")
		return r.lexical(ctx, query, k, o)
	case len(queryVec) != r.embedder.Dimensions():
		return nil, &core.DimensionMismatchError{Got: len(queryVec), Want: r.embedder.Dimensions()}
	}

	candidates, err := r.store.Candidates(ctx, storage.ModeVector, o.filter)
	if err != nil {
		return nil, err
	}
	usable, err := r.usable(candidates)
	if err != nil {
		return nil, err
	}
	if len(usable) == 0 {
		o.monitor.ModeChosen(storage.ModeLexical, "no comparable embeddings")
		return r.lexical(ctx, query, k, o)
	}

	o.monitor.ModeChosen(storage.ModeVector, "")
	o.monitor.AfterCandidateScan(len(usable))

	results := make([]*core.SearchResult, 0, len(usable))
	for _, record := range usable {
		results = append(results, &core.SearchResult{
			Record: record,
			Score:  CosineSimilarity(queryVec, record.Embedding),
		})
	}
	return topK(results, k), nil
}

// usable keeps vectors produced by the active embedder. Vectors from
// another embedder are stale and skipped; a vector from the active embedder
// with the wrong length is corruption.
func (r *Retriever) usable(candidates []*core.MemoryRecord) ([]*core.MemoryRecord, error) {
	name, dims := r.embedder.Name(), r.embedder.Dimensions()
	out := candidates[:0]
	stale := 0
	for _, record := range candidates {
		if record.EmbedderName != name {
			stale++
			continue
		}
		if len(record.Embedding) != dims {
			r.logger.Error("stored embedding has wrong dimension",
				"id", record.ID, "got", len(record.Embedding), "want", dims)
			return nil, &core.DimensionMismatchError{RecordID: record.ID, Got: len(record.Embedding), Want: dims}
		}
		out = append(out, record)
	}
	if stale > 0 {
		r.logger.Debug("skipped stale embeddings", "count", stale, "embedder", name)
	}
	return out, nil
}

func (r *Retriever) lexical(ctx context.Context, query string, k int, o searchOptions) ([]*core.SearchResult, error) {
	candidates, err := r.store.Candidates(ctx, storage.ModeLexical, o.filter)
	if err != nil {
		return nil, err
	}
	o.monitor.AfterCandidateScan(len(candidates))

	terms := make(map[string]bool)
	for _, t := range queryTerms(query) {
		terms[t] = true
	}

	results := []*core.SearchResult{}
	if len(terms) == 0 {
		return results, nil
	}
	for _, record := range candidates {
		if score := lexicalScore(record.Content, terms); score > 0 {
			results = append(results, &core.SearchResult{Record: record, Score: float32(score)})
		}
	}
	return topK(results, k), nil
}

// topK sorts by score descending, then timestamp descending, then id
// descending, and truncates to k.
func topK(results []*core.SearchResult, k int) []*core.SearchResult {
	slices.SortStableFunc(results, compareResults)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func compareResults(a, b *core.SearchResult) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := b.Record.Timestamp.Compare(a.Record.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(b.Record.ID, a.Record.ID)
}
