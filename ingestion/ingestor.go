package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/mnemo/ai"
	"github.com/poiesic/mnemo/core"
	"github.com/poiesic/mnemo/storage"
)

// Ingestor chunks documents and stores each chunk as a document memory.
type Ingestor struct {
	store      storage.Store
	embedder   ai.Embedder
	pool       *ants.Pool
	chunkWords int
	backoff    Backoff
	logger     *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(in *Ingestor) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if in.pool != nil {
			in.pool.Release()
		}
		in.pool = pool
		return nil
	}
}

// WithChunkWords sets the number of words per chunk.
// Default is DefaultChunkWords.
func WithChunkWords(words int) Option {
	return func(in *Ingestor) error {
		if words <= 0 {
			return ErrInvalidChunkSize
		}
		in.chunkWords = words
		return nil
	}
}

// WithRetry sets how often a chunk embedding is attempted and the base
// backoff between attempts. Default is 2 attempts, 200ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(in *Ingestor) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		in.backoff.MaxAttempts = maxAttempts
		in.backoff.BaseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(in *Ingestor) error {
		if logger == nil {
			logger = slog.Default()
		}
		in.logger = logger.With("component", "ingestor")
		return nil
	}
}

// NewIngestor creates a new ingestor. An unavailable embedder is accepted;
// chunks are then stored without vectors and found lexically.
func NewIngestor(store storage.Store, embedder ai.Embedder, opts ...Option) (*Ingestor, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	in := &Ingestor{
		store:      store,
		embedder:   embedder,
		pool:       pool,
		chunkWords: DefaultChunkWords,
		backoff: Backoff{
			MaxAttempts: 2,
			BaseDelay:   200 * time.Millisecond,
			Permanent: func(err error) bool {
				return errors.Is(err, core.ErrDimensionMismatch)
			},
		},
		logger: slog.Default().With("component", "ingestor"),
	}
	for _, opt := range opts {
		if optErr := opt(in); optErr != nil {
			in.Release()
			return nil, optErr
		}
	}
	return in, nil
}

// ProgressFunc is called after each chunk is settled, with the number of
// chunks settled so far and the total.
type ProgressFunc func(done, total int)

type ingestOptions struct {
	progress ProgressFunc
}

// IngestOption configures a single Ingest call.
type IngestOption func(*ingestOptions)

// WithProgress reports per-chunk progress.
func WithProgress(fn ProgressFunc) IngestOption {
	return func(o *ingestOptions) {
		o.progress = fn
	}
}

type embedResult struct {
	vector []float32
	err    error
}

// Ingest splits text into chunks, embeds them and stores them in order under
// source. When some chunks are not stored the summary is still returned,
// together with a *core.PartialIngestionError.
func (in *Ingestor) Ingest(ctx context.Context, text, source string, opts ...IngestOption) (core.IngestSummary, error) {
	o := ingestOptions{progress: func(int, int) {}}
	for _, opt := range opts {
		opt(&o)
	}

	summary := core.IngestSummary{IngestID: uuid.NewString(), Source: strings.TrimSpace(source)}
	if summary.Source == "" {
		return summary, ErrSourceRequired
	}
	chunks, err := Chunk(text, in.chunkWords)
	if err != nil {
		return summary, err
	}
	if len(chunks) == 0 {
		return summary, ErrEmptyDocument
	}
	summary.TotalCount = len(chunks)

	logger := in.logger.With("ingest", summary.IngestID, "source", summary.Source)
	logger.Info("ingesting document", "chunks", len(chunks))

	vectors := in.embedChunks(ctx, logger, chunks)

	var failed error
	for i, chunk := range chunks {
		record := &core.MemoryRecord{
			Content: chunk,
			Role:    core.RoleDocument,
			Source:  summary.Source,
		}
		switch res := vectors[i]; {
		case res.err == nil:
			record.Embedding = res.vector
			record.EmbedderName = in.embedder.Name()
		case !ai.Available(in.embedder):
			// Stored without a vector; found lexically.
		case errors.Is(res.err, core.ErrDimensionMismatch):
			logger.Error("chunk embedding has wrong dimension", "chunk", i, "err", res.err)
			return in.partial(summary, res.err)
		default:
			logger.Warn("chunk embedding failed, skipping chunk", "chunk", i, "err", res.err)
			failed = res.err
			o.progress(i+1, len(chunks))
			continue
		}

		if _, err := in.store.Insert(ctx, record); err != nil {
			logger.Error("error storing chunk", "chunk", i, "err", err)
			return in.partial(summary, err)
		}
		summary.ChunkCount++
		o.progress(i+1, len(chunks))
	}

	if failed != nil {
		return in.partial(summary, failed)
	}
	logger.Info("document ingested", "chunks", summary.ChunkCount)
	return summary, nil
}

func (in *Ingestor) partial(summary core.IngestSummary, cause error) (core.IngestSummary, error) {
	return summary, &core.PartialIngestionError{Summary: summary, Cause: cause}
}

// embedChunks embeds every chunk on the pool. With no embedder active every
// result carries core.ErrProviderUnavailable and nothing is submitted.
func (in *Ingestor) embedChunks(ctx context.Context, logger *slog.Logger, chunks []string) []embedResult {
	results := make([]embedResult, len(chunks))
	if !ai.Available(in.embedder) {
		for i := range results {
			results[i].err = core.ErrProviderUnavailable
		}
		return results
	}

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i] = in.embedChunk(ctx, logger, chunk)
		}
		if err := in.pool.Submit(task); err != nil {
			wg.Done()
			results[i].err = fmt.Errorf("submit chunk %d: %w", i, err)
		}
	}
	wg.Wait()
	return results
}

func (in *Ingestor) embedChunk(ctx context.Context, logger *slog.Logger, chunk string) embedResult {
	var res embedResult
	res.err = in.backoff.Do(ctx, logger, func(ctx context.Context) error {
		vec, err := in.embedder.EmbedText(ctx, chunk)
		if err != nil {
			return err
		}
		if len(vec) != in.embedder.Dimensions() {
			return &core.DimensionMismatchError{Got: len(vec), Want: in.embedder.Dimensions()}
		}
		res.vector = vec
		return nil
	})
	return res
}

// Release releases the worker pool.
// The ingestor should not be used after calling Release.
func (in *Ingestor) Release() {
	if in.pool != nil {
		in.pool.Release()
	}
}
